// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package ffmpeg

import "github.com/ZSC714725/vpaas/internal/job"

// Args builds the transcoder command line for a job. The output is
// always overwritten, stdin is never read, and progress goes to stdout
// as key=value blocks while the periodic stderr status is disabled.
func Args(j *job.Job) []string {
	args := []string{
		"-y",
		"-nostdin",
		"-progress", "-",
		"-nostats",
		"-i", j.InputLocation,
		"-s", j.Dimensions.String(),
	}
	if codec := j.Codec(); codec != "" {
		args = append(args, "-c:a", codec)
	}
	return append(args, j.OutputLocation)
}
