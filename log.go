package titan

import (
	"github.com/arthurkiller/rollingWriter"
	"github.com/distributedio/titanhfe/conf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds and installs the process-wide zap logger per cfg:
// when File is empty, zap's production logger on stderr (local
// development), which keeps its own info level and does not apply
// cfg.Level; otherwise a size-rotated file via arthurkiller/rollingWriter
// at cfg.Level.
func InitLogger(cfg *conf.Log) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	if cfg.File == "" {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		zap.ReplaceGlobals(logger)
		return logger, nil
	}

	writer, err := rollingwriter.NewWriterFromConfig(&rollingwriter.Config{
		LogPath:      ".",
		FileName:     cfg.File,
		MaxRemain:    -1,
		RollingPolicy: rollingwriter.VolumeRolling,
		RollingVolumeSize: fmtMB(cfg.MaxSizeMB),
	})
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func fmtMB(mb int) string {
	if mb <= 0 {
		mb = 100
	}
	return itoa(mb) + "MB"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
