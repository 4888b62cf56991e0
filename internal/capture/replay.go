package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"

	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/internal/log"
)

// Options selects the packets a replay produces.
type Options struct {
	File    string
	Ports   []uint16
	Snaplen int // 0 keeps packets whole
	Limit   int // 0 replays everything
}

// Stats counts packets seen by a replay.
type Stats struct {
	Read      int64
	Filtered  int64
	Delivered int64
	StartTime time.Time
}

// Packet is one frame handed to the consumer with its capture metadata.
type Packet struct {
	Frame engine.Frame
	Info  gopacket.CaptureInfo
}

// Replay reads opts.File and calls fn for every packet that passes the
// port filter, in file order. It stops at the end of the file, when
// opts.Limit packets were delivered, when ctx is done, or when fn fails.
func Replay(ctx context.Context, opts Options, fn func(Packet) error) (*Stats, error) {
	src, err := Open(opts.File)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return replay(ctx, src, opts, fn)
}

func replay(ctx context.Context, src *Source, opts Options, fn func(Packet) error) (*Stats, error) {
	logger := log.GetLogger().WithFields(map[string]any{"file": src.path, "link": src.LinkType().String()})
	filter, err := NewPortFilter(src.LinkType(), opts.Ports)
	if err != nil {
		return nil, err
	}
	dec := NewDecoder(src.LinkType())
	stats := &Stats{StartTime: time.Now()}

	logger.WithFields(map[string]any{"pcapng": src.IsNg(), "ports": opts.Ports}).Info("replay started")
	for number := 1; ; number++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if opts.Limit > 0 && stats.Delivered >= int64(opts.Limit) {
			break
		}

		data, ci, err := src.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.Read++
		if opts.Snaplen > 0 && len(data) > opts.Snaplen {
			data = data[:opts.Snaplen]
		}
		if !filter.Match(data) {
			stats.Filtered++
			continue
		}

		if err := fn(Packet{Frame: dec.Decode(number, data), Info: ci}); err != nil {
			return stats, fmt.Errorf("frame %d: %w", number, err)
		}
		stats.Delivered++
	}
	logger.WithFields(map[string]any{
		"read":      stats.Read,
		"filtered":  stats.Filtered,
		"delivered": stats.Delivered,
		"elapsed":   time.Since(stats.StartTime).String(),
	}).Info("replay finished")
	return stats, nil
}
