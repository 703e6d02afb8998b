// Package main implements encbench, a synthetic encode benchmark for
// exercising an encoder session against real codecs.
package main

import (
	"github.com/savid/ramenc"
	"github.com/savid/ramenc/config"
	"github.com/savid/ramenc/internal/stats"
	"github.com/savid/ramenc/pixel"
	"github.com/sirupsen/logrus"
)

func main() {
	// Configure logrus
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// Set log level based on config
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to parse log level")
	}
	logrus.SetLevel(level)

	logger := logrus.StandardLogger()

	format, err := cfg.PixelFormat()
	if err != nil {
		logger.WithError(err).Fatal("Failed to resolve pixel format")
	}
	quality, err := cfg.QualityLevel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to resolve quality")
	}
	rateControl, err := cfg.RateControlPolicy()
	if err != nil {
		logger.WithError(err).Fatal("Failed to resolve rate control")
	}

	window := stats.NewWindow(cfg.FPS * 2)

	session, err := ramenc.New(ramenc.Config{
		Codec:       cfg.Codec,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		Align:       cfg.Align,
		BitRate:     cfg.BitRate,
		TimeBaseNum: 1,
		TimeBaseDen: cfg.FPS,
		GOP:         cfg.GOP,
		Quality:     quality,
		RateControl: rateControl,
		Threads:     cfg.Threads,
		GPU:         cfg.GPU,
		Logger:      logger,
		OnPacket: func(p ramenc.Packet) {
			window.Record(stats.Sample{PTS: p.PTS, Bytes: len(p.Data), Key: p.Key})
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to open encoder session")
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.WithError(err).Error("Failed to close encoder session")
		}
	}()

	layout := session.Layout()
	logger.WithFields(logrus.Fields{
		"session": session.ID(),
		"strides": layout.Strides,
		"length":  layout.Length,
	}).Info("Encoder session opened")

	frame := make([]byte, layout.Length)
	for i := 0; i < cfg.Frames; i++ {
		paintFrame(frame, layout, format, cfg.Width, cfg.Height, i)

		ms := int64(i) * 1000 / int64(cfg.FPS)
		if err := session.Encode(frame, ms); err != nil {
			logger.WithError(err).WithField("frame", i).Fatal("Encode failed")
		}

		if (i+1)%cfg.FPS == 0 {
			logger.WithFields(logrus.Fields{
				"frames":    i + 1,
				"packets":   window.Packets(),
				"keyframes": window.Keyframes(),
				"bitrate":   int64(window.BitRate()),
				"fps":       window.FPS(),
			}).Info("Encoding progress")
		}
	}

	logger.WithFields(logrus.Fields{
		"frames":    cfg.Frames,
		"packets":   window.Packets(),
		"bytes":     window.Bytes(),
		"keyframes": window.Keyframes(),
	}).Info("Encoding complete")
}

// paintFrame fills the frame with a moving luma gradient and static
// mid-grey chroma, so successive frames differ enough to exercise rate
// control.
func paintFrame(frame []byte, layout pixel.Layout, format pixel.Format, width, height, index int) {
	for y := 0; y < height; y++ {
		row := layout.Offsets[0] + y*layout.Strides[0]
		for x := 0; x < width; x++ {
			frame[row+x] = byte(x + y + index*4)
		}
	}
	for p := 1; p < format.Planes(); p++ {
		rows := height / 2
		for y := 0; y < rows; y++ {
			row := layout.Offsets[p] + y*layout.Strides[p]
			for x := 0; x < layout.Strides[p]; x++ {
				frame[row+x] = 128
			}
		}
	}
}
