// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

// Package skills probes what a transcoder binary can do.
package skills

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

const probeTimeout = 10 * time.Second

// Codec represents a codec with encoders and decoders
type Codec struct {
	Id       string
	Name     string
	Encoders []string
	Decoders []string
}

// Protocol represents a supported protocol
type Protocol struct {
	Id   string
	Name string
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Binary describes the probed executable
type Binary struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Codecs grouped by media type
type Codecs struct {
	Audio    []Codec
	Video    []Codec
	Subtitle []Codec
}

// Protocols grouped by direction
type Protocols struct {
	Input  []Protocol
	Output []Protocol
}

// Skills are the detected capabilities of FFmpeg
type Skills struct {
	FFmpeg    Binary
	Codecs    Codecs
	Protocols Protocols
}

// HasEncoder reports whether an audio encoder or audio codec with that
// name can be used with -c:a.
func (s Skills) HasEncoder(name string) bool {
	for _, c := range s.Codecs.Audio {
		if len(c.Encoders) == 0 {
			continue
		}
		if c.Id == name {
			return true
		}
		for _, e := range c.Encoders {
			if e == name {
				return true
			}
		}
	}
	return false
}

// SupportsInputProtocol reports whether the scheme of location can be
// read. Locations without a scheme are files. Without a protocol listing
// nothing is known and every scheme is allowed.
func (s Skills) SupportsInputProtocol(location string) bool {
	if len(s.Protocols.Input) == 0 {
		return true
	}
	scheme := Scheme(location)
	for _, p := range s.Protocols.Input {
		if p.Id == scheme {
			return true
		}
	}
	return false
}

// Scheme returns the protocol part of a location, "file" for plain paths.
func Scheme(location string) string {
	scheme, _, found := strings.Cut(location, "://")
	if !found || scheme == "" || strings.ContainsAny(scheme, `/\`) {
		return "file"
	}
	return strings.ToLower(scheme)
}

// New returns all skills that FFmpeg provides
func New(binary string) (Skills, error) {
	s := Skills{}

	out, err := run(binary, "-version")
	if err != nil {
		return Skills{}, fmt.Errorf("can't run ffmpeg: %w", err)
	}
	s.FFmpeg = parseVersion(out)
	if s.FFmpeg.Version == "" {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}

	// Listings are best effort. An empty codec list rejects audio codec
	// overrides, an empty protocol list lets every input through.
	out, _ = run(binary, "-codecs")
	s.Codecs = parseCodecs(out)

	out, _ = run(binary, "-protocols")
	s.Protocols = parseProtocols(out)

	return s, nil
}

func run(binary string, arg string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	args := []string{arg}
	if arg != "-version" {
		args = []string{"-hide_banner", arg}
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = []string{}
	return cmd.Output()
}

var patterns = sync.OnceValue(func() map[string]*regexp.Regexp {
	return map[string]*regexp.Regexp{
		"version":       regexp.MustCompile(`^ffmpeg version ([0-9]+\.[0-9]+(\.[0-9]+)?)`),
		"compiler":      regexp.MustCompile(`(?m)^\s*built with (.*)$`),
		"configuration": regexp.MustCompile(`(?m)^\s*configuration: (.*)$`),
		"library":       regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`),
		"codec":         regexp.MustCompile(`^\s([D.])([E.])([VAS]).{3} ([0-9A-Za-z_]+)\s+(.*?)(?:\(decoders:([^\)]+)\))?\s?(?:\(encoders:([^\)]+)\))?$`),
	}
})

func parseVersion(data []byte) Binary {
	re := patterns()
	b := Binary{}

	if m := re["version"].FindSubmatch(data); m != nil {
		b.Version = string(m[1])
		if len(m[2]) == 0 {
			b.Version += ".0"
		}
	}
	if m := re["compiler"].FindSubmatch(data); m != nil {
		b.Compiler = strings.TrimSpace(string(m[1]))
	}
	if m := re["configuration"].FindSubmatch(data); m != nil {
		b.Configuration = strings.TrimSpace(string(m[1]))
	}
	for _, m := range re["library"].FindAllSubmatch(data, -1) {
		b.Libraries = append(b.Libraries, Library{
			Name:     string(m[1]),
			Compiled: strings.ReplaceAll(string(m[2]), " ", ""),
			Linked:   strings.ReplaceAll(string(m[3]), " ", ""),
		})
	}
	return b
}

func parseCodecs(data []byte) Codecs {
	re := patterns()["codec"]
	codecs := Codecs{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		c := Codec{Id: m[4], Name: strings.TrimSpace(m[5])}
		if m[1] == "D" {
			c.Decoders = names(m[6], m[4])
		}
		if m[2] == "E" {
			c.Encoders = names(m[7], m[4])
		}
		switch m[3] {
		case "V":
			codecs.Video = append(codecs.Video, c)
		case "A":
			codecs.Audio = append(codecs.Audio, c)
		case "S":
			codecs.Subtitle = append(codecs.Subtitle, c)
		}
	}
	return codecs
}

// names splits an explicit "(encoders: a b)" list, or falls back to the codec id.
func names(list, id string) []string {
	if fields := strings.Fields(list); len(fields) > 0 {
		return fields
	}
	return []string{id}
}

func parseProtocols(data []byte) Protocols {
	p := Protocols{}
	var dst *[]Protocol

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "Input:":
			dst = &p.Input
			continue
		case "Output:":
			dst = &p.Output
			continue
		}
		if dst == nil || line == "" {
			continue
		}
		*dst = append(*dst, Protocol{Id: line, Name: line})
	}
	return p
}
