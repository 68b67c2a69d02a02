package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoInfo 课时视频的元数据，Duration 用于限制播放进度上报的时间戳
type VideoInfo struct {
	Duration float64
	Width    int
	Height   int
}

type videoMetadata struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// InspectVideo 用 ffprobe 读取时长与分辨率，没有视频流时报错
func InspectVideo(path string) (*VideoInfo, error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	var out videoMetadata
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := &VideoInfo{Duration: parseSeconds(out.Format.Duration)}
	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		info.Width, info.Height = s.Width, s.Height
		// 部分容器 format 里没有时长
		if info.Duration == 0 {
			info.Duration = parseSeconds(s.Duration)
		}
		break
	}
	if !found {
		return nil, fmt.Errorf("%s has no video stream", path)
	}
	return info, nil
}

func parseSeconds(s string) float64 {
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

// ThumbnailOffset 取时长的十分之一作为截帧位置，限制在 1 到 10 秒之间，且不超过视频长度
func ThumbnailOffset(duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	offset := math.Min(math.Max(duration/10, 1), 10)
	return math.Min(offset, duration/2)
}

// ExtractFrame 截取 offset 秒处的一帧写成 jpeg
func ExtractFrame(videoPath, imagePath string, offsetSeconds float64) error {
	return ffmpeg.Input(videoPath, ffmpeg.KwArgs{"ss": strconv.FormatFloat(offsetSeconds, 'f', 2, 64)}).
		Output(imagePath, ffmpeg.KwArgs{"vframes": 1, "q:v": 3, "f": "image2"}).
		OverWriteOutput().
		Run()
}
