package out

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"breathkit/internal/modules/device/domain"
	deviceout "breathkit/internal/modules/device/port/out"
)

// ErrRecordingEnded is returned once a non-looping recording is exhausted.
// It matches io.EOF so callers outside this package can detect it.
var ErrRecordingEnded = fmt.Errorf("recording ended: %w", io.EOF)

type FileRecordingOpener struct{}

func NewFileRecordingOpener() deviceout.RecordingOpener {
	return FileRecordingOpener{}
}

func (FileRecordingOpener) Open(_ context.Context, path string, loop bool) (deviceout.Sampler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return &recordingSampler{file: f, scanner: bufio.NewScanner(f), loop: loop}, nil
}

type recordingSampler struct {
	file    *os.File
	scanner *bufio.Scanner
	loop    bool
	// read counts samples since the last rewind so an empty recording
	// cannot spin forever while looping.
	read int
}

func (s *recordingSampler) Next(ctx context.Context) (float64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if s.scanner.Scan() {
			value, ok := domain.ParseRecordingLine(s.scanner.Text())
			if !ok {
				continue
			}
			s.read++
			return value, nil
		}
		if err := s.scanner.Err(); err != nil {
			return 0, fmt.Errorf("read recording: %w", err)
		}
		if !s.loop || s.read == 0 {
			return 0, ErrRecordingEnded
		}
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("rewind recording: %w", err)
		}
		s.scanner = bufio.NewScanner(s.file)
		s.read = 0
	}
}

func (s *recordingSampler) Close() error {
	return s.file.Close()
}
