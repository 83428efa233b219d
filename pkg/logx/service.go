package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	timeFormat      = "2006-01-02T15:04:05.000Z07:00"
	defaultLogFile  = "./fanoutd.log"
	defaultLogLevel = zerolog.InfoLevel
)

type Config struct {
	Level   string
	Console bool
	// JSON switches the console sink to raw JSON lines (useful under journald).
	JSON bool
	File FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

func (c FileConfig) path() string {
	if p := strings.TrimSpace(c.Path); p != "" {
		return p
	}
	return defaultLogFile
}

// Service owns the log sinks. Loggers obtained from it pick up every Apply.
type Service struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	stdout   io.Writer

	root atomic.Pointer[zerolog.Logger]
}

func NewService(cfg Config) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat

	s := &Service{stdout: os.Stdout}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply swaps level and sinks. The log file is reopened only when its path
// changes or it is toggled.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncFileLocked(cfg.File)

	var writers []io.Writer
	if cfg.Console {
		if cfg.JSON {
			writers = append(writers, s.stdout)
		} else {
			writers = append(writers, consoleWriter(s.stdout))
		}
	}
	if s.file != nil {
		writers = append(writers, zerolog.SyncWriter(s.file))
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(s.stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, defaultLogLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

func (s *Service) syncFileLocked(fc FileConfig) {
	want := ""
	if fc.Enabled {
		want = fc.path()
	}
	if want == s.filePath && (want == "") == (s.file == nil) {
		return
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file, s.filePath = nil, ""
	}
	if want == "" {
		return
	}
	f, err := os.OpenFile(want, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: open log file %q: %v\n", want, err)
		return
	}
	s.file, s.filePath = f, want
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.filePath = nil, ""
	return err
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}
