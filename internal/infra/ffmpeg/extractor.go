package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"go.uber.org/zap"
)

// ExtractionError wraps a media-tool failure together with the tool's own
// output. Extraction is best-effort: no retry happens at this layer.
type ExtractionError struct {
	Op     string
	Output string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor shells out to ffmpeg/ffprobe to decode still frames from videos.
// Each extraction job writes into its own uniquely named subdirectory of
// framesDir, so concurrent jobs over the same source never collide.
type Extractor struct {
	framesDir   string
	defaultRate float64
	defaultMax  int
	logger      *zap.Logger
}

func NewExtractor(framesDir string, rate float64, maxFrames int, logger *zap.Logger) *Extractor {
	return &Extractor{
		framesDir:   framesDir,
		defaultRate: rate,
		defaultMax:  maxFrames,
		logger:      logger,
	}
}

// ExtractFrames samples the video at opts.FrameRate up to opts.MaxFrames
// frames and returns the produced file paths in temporal order, named
// frame_1.jpg, frame_2.jpg, ...
func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, opts entity.ExtractionOptions) ([]string, error) {
	rate := opts.FrameRate
	if rate <= 0 {
		rate = e.defaultRate
	}
	maxFrames := opts.MaxFrames
	if maxFrames <= 0 {
		maxFrames = e.defaultMax
	}

	outputDir, err := e.newOutputDir(videoPath)
	if err != nil {
		return nil, err
	}

	args := []string{}
	if opts.StartOffset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(opts.StartOffset, 'f', -1, 64))
	}
	args = append(args,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%s", strconv.FormatFloat(rate, 'f', -1, 64)),
		"-frames:v", strconv.Itoa(maxFrames),
		"-y",
		filepath.Join(outputDir, "frame_%d.jpg"),
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &ExtractionError{Op: "extract frames", Output: strings.TrimSpace(string(output)), Err: err}
	}

	frames, err := filepath.Glob(filepath.Join(outputDir, "frame_*.jpg"))
	if err != nil {
		return nil, &ExtractionError{Op: "collect frames", Err: err}
	}
	if len(frames) == 0 {
		return nil, &ExtractionError{Op: "extract frames", Err: fmt.Errorf("no frames produced from %s", videoPath)}
	}
	sortFramePaths(frames)

	e.logger.Info("frames extracted",
		zap.String("video", videoPath),
		zap.Int("count", len(frames)),
		zap.Float64("rate", rate),
	)
	return frames, nil
}

// ExtractSingleFrame seeks to timestamp seconds and decodes exactly one frame.
func (e *Extractor) ExtractSingleFrame(ctx context.Context, videoPath string, timestamp float64) (string, error) {
	if err := os.MkdirAll(e.framesDir, 0o755); err != nil {
		return "", &ExtractionError{Op: "create frames dir", Err: err}
	}
	outputPath := filepath.Join(e.framesDir, fmt.Sprintf("frame_%d.jpg", time.Now().UnixNano()))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(timestamp, 'f', -1, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", &ExtractionError{Op: "extract single frame", Output: strings.TrimSpace(string(output)), Err: err}
	}

	e.logger.Info("frame extracted", zap.Float64("timestamp", timestamp), zap.String("path", outputPath))
	return outputPath, nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Metadata probes the video and reports duration, size, bitrate, dimensions
// and frame rate. The tool reports frame rate as a rational expression such
// as "30000/1001"; it is parsed as numerator/denominator, never evaluated.
func (e *Extractor) Metadata(ctx context.Context, videoPath string) (*entity.VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, &ExtractionError{Op: "probe video", Err: err}
	}

	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, &ExtractionError{Op: "parse probe output", Err: err}
	}

	meta := &entity.VideoMetadata{}
	meta.DurationSeconds, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	meta.SizeBytes, _ = strconv.ParseInt(probe.Format.Size, 10, 64)
	meta.BitRate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)

	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width = s.Width
		meta.Height = s.Height
		fps, err := ParseRational(s.RFrameRate)
		if err != nil {
			return nil, &ExtractionError{Op: "parse frame rate", Err: err}
		}
		meta.FPS = fps
		break
	}

	return meta, nil
}

// CleanupOlderThan deletes frame files whose last modification exceeds
// maxAge, then removes any directories left empty. Per-file failures are
// logged and the scan continues.
func (e *Extractor) CleanupOlderThan(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	var emptied []string

	_ = filepath.WalkDir(e.framesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if !os.IsNotExist(err) {
				e.logger.Warn("cleanup walk error", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		if d.IsDir() {
			if path != e.framesDir {
				emptied = append(emptied, path)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			e.logger.Warn("cleanup stat error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				e.logger.Warn("cleanup remove error", zap.String("path", path), zap.Error(err))
				return nil
			}
			e.logger.Debug("deleted old frame", zap.String("path", path))
		}
		return nil
	})

	// Deepest directories first so nested empties collapse.
	sort.Sort(sort.Reverse(sort.StringSlice(emptied)))
	for _, dir := range emptied {
		_ = os.Remove(dir) // fails harmlessly when non-empty
	}
}

func (e *Extractor) newOutputDir(videoPath string) (string, error) {
	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	dir := filepath.Join(e.framesDir, fmt.Sprintf("%s_%d", videoName, time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ExtractionError{Op: "create output dir", Err: err}
	}
	return dir, nil
}

// ParseRational evaluates a "numerator/denominator" rate expression to a
// float. Plain numbers pass through unchanged.
func ParseRational(expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("empty rate expression")
	}
	num, den, found := strings.Cut(expr, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", expr, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", expr, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("parse rate %q: zero denominator", expr)
	}
	return n / d, nil
}

// sortFramePaths orders frame_<n>.jpg paths by frame index. Lexical order
// would put frame_10 before frame_2.
func sortFramePaths(frames []string) {
	sort.Slice(frames, func(i, j int) bool {
		return frameIndex(frames[i]) < frameIndex(frames[j])
	})
}

func frameIndex(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndexByte(base, '_')
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(base[idx+1:])
	return n
}
