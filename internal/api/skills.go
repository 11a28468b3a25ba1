// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package api

import (
	"github.com/ZSC714725/vpaas/internal/ffmpeg/skills"
)

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg struct {
		Version       string          `json:"version"`
		Compiler      string          `json:"compiler"`
		Configuration string          `json:"configuration"`
		Libraries     []SkillsLibrary `json:"libraries"`
	} `json:"ffmpeg"`

	Codecs struct {
		Audio    []SkillsCodec `json:"audio"`
		Video    []SkillsCodec `json:"video"`
		Subtitle []SkillsCodec `json:"subtitle"`
	} `json:"codecs"`

	Protocols struct {
		Input  []SkillsProtocol `json:"input"`
		Output []SkillsProtocol `json:"output"`
	} `json:"protocols"`
}

type SkillsLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

type SkillsCodec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Encoders []string `json:"encoders"`
	Decoders []string `json:"decoders"`
}

type SkillsProtocol struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{}

	resp.FFmpeg.Version = s.FFmpeg.Version
	resp.FFmpeg.Compiler = s.FFmpeg.Compiler
	resp.FFmpeg.Configuration = s.FFmpeg.Configuration
	resp.FFmpeg.Libraries = make([]SkillsLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.FFmpeg.Libraries[i] = SkillsLibrary{lib.Name, lib.Compiled, lib.Linked}
	}

	resp.Codecs.Audio = codecsToAPI(s.Codecs.Audio)
	resp.Codecs.Video = codecsToAPI(s.Codecs.Video)
	resp.Codecs.Subtitle = codecsToAPI(s.Codecs.Subtitle)

	resp.Protocols.Input = protocolsToAPI(s.Protocols.Input)
	resp.Protocols.Output = protocolsToAPI(s.Protocols.Output)

	return resp
}

func codecsToAPI(codecs []skills.Codec) []SkillsCodec {
	out := make([]SkillsCodec, len(codecs))
	for i, c := range codecs {
		out[i] = SkillsCodec{ID: c.Id, Name: c.Name, Encoders: c.Encoders, Decoders: c.Decoders}
	}
	return out
}

func protocolsToAPI(protocols []skills.Protocol) []SkillsProtocol {
	out := make([]SkillsProtocol, len(protocols))
	for i, p := range protocols {
		out[i] = SkillsProtocol{ID: p.Id, Name: p.Name}
	}
	return out
}
