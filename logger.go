package dbrecord

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger interface defines simple behavior for logging with structured fields
type Logger interface {
	// Log records a log entry. fields is optional (can be nil).
	Log(level LogLevel, msg string, fields map[string]interface{})
}

// slogLogger is an adapter for log/slog
type slogLogger struct {
	logger *slog.Logger
}

// 优先输出的字段，顺序固定
var priorityKeys = []string{"conn", "duration", "sql", "args", "error"}

func (s *slogLogger) Log(level LogLevel, msg string, fields map[string]interface{}) {
	l := s.logger
	if l == nil {
		l = slog.Default()
	}

	var args []interface{}
	if len(fields) > 0 {
		args = make([]interface{}, 0, len(fields)*2)
		seen := make(map[string]bool, len(priorityKeys))
		for _, k := range priorityKeys {
			v, ok := fields[k]
			if !ok {
				continue
			}
			if k == "args" {
				if slice, ok := v.([]interface{}); ok {
					v = formatValue(slice)
				}
			}
			args = append(args, k, v)
			seen[k] = true
		}

		rest := make([]string, 0, len(fields))
		for k := range fields {
			if !seen[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		for _, k := range rest {
			args = append(args, k, fields[k])
		}
	}

	switch level {
	case LevelDebug:
		l.Debug(msg, args...)
	case LevelInfo:
		l.Info(msg, args...)
	case LevelWarn:
		l.Warn(msg, args...)
	case LevelError:
		l.Error(msg, args...)
	}
}

// NewSlogLogger creates a Logger that uses log/slog
func NewSlogLogger(logger *slog.Logger) Logger {
	return &slogLogger{logger: logger}
}

// formatValue formats a log field value
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("'%s'", val)
	case []interface{}:
		strs := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				strs = append(strs, fmt.Sprintf("'%s'", s))
			} else {
				strs = append(strs, fmt.Sprintf("%v", item))
			}
		}
		return fmt.Sprintf("[%s]", strings.Join(strs, ", "))
	default:
		return fmt.Sprintf("%v", val)
	}
}

var (
	logMu         sync.RWMutex
	currentLogger Logger = &slogLogger{logger: nil}
	debug         bool
	spaceRe       = regexp.MustCompile(`\s+`)

	legacyOnce     sync.Once
	legacyDecoders []legacyDecoder
)

type legacyDecoder struct {
	name string
	enc  encoding.Encoding
}

// MySQL 在非 UTF-8 字符集下返回的错误信息可能是 GBK/Big5 等编码，这里尝试修复
func fixStringEncoding(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	legacyOnce.Do(func() {
		legacyDecoders = []legacyDecoder{
			{"GBK", simplifiedchinese.GBK},
			{"Big5", traditionalchinese.Big5},
			{"GB18030", simplifiedchinese.GB18030},
			{"Shift_JIS", japanese.ShiftJIS},
			{"EUC-JP", japanese.EUCJP},
			{"EUC-KR", korean.EUCKR},
			{"Windows-1252", charmap.Windows1252},
		}
	})

	data := []byte(text)
	for _, d := range legacyDecoders {
		decoded, err := d.enc.NewDecoder().Bytes(data)
		if err != nil || !utf8.Valid(decoded) {
			continue
		}
		if plausibleText(string(decoded)) {
			return string(decoded)
		}
	}
	return text
}

// plausibleText rejects decodings dominated by replacement runes or half-width katakana
func plausibleText(s string) bool {
	total, bad, kana := 0, 0, 0
	for _, r := range s {
		total++
		switch {
		case r == utf8.RuneError:
			bad++
		case r >= 0xFF61 && r <= 0xFF9F:
			kana++
		}
	}
	if total == 0 {
		return false
	}
	return float64(bad)/float64(total) < 0.1 && float64(kana)/float64(total) < 0.3
}

func getLogger() Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return currentLogger
}

// SetLogger sets the global logger
func SetLogger(l Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	if l == nil {
		l = &slogLogger{logger: nil}
	}
	currentLogger = l
}

// SetDebugMode enables or disables debug mode. In debug mode every statement of
// every connection is logged, as if DebugSQL were set on its config.
func SetDebugMode(enabled bool) {
	logMu.Lock()
	debug = enabled
	logMu.Unlock()
	if enabled {
		// 全局 slog 不支持 Debug 级别时，切换到输出到标准输出的 Debug 级别 handler
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	}
}

// IsDebugEnabled returns true if debug mode is enabled
func IsDebugEnabled() bool {
	logMu.RLock()
	defer logMu.RUnlock()
	return debug
}

// cleanSQL removes newlines, tabs and multiple spaces from SQL string
func cleanSQL(sql string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(sql, " "))
}

// LogSQL logs a statement issued on the connection identified by cid
func LogSQL(cid string, sql string, args []interface{}, duration time.Duration) {
	fields := map[string]interface{}{
		"conn":     cid,
		"sql":      cleanSQL(sql),
		"duration": duration.String(),
	}
	if len(args) > 0 {
		fields["args"] = args
	}
	getLogger().Log(LevelDebug, "SQL log", fields)
}

// LogSQLError logs a failed statement; it is always emitted regardless of debug mode
func LogSQLError(cid string, sql string, args []interface{}, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"conn":     cid,
		"sql":      cleanSQL(sql),
		"duration": duration.String(),
		"error":    fixStringEncoding(err.Error()),
		"caller":   getCaller(),
	}
	if len(args) > 0 {
		fields["args"] = args
	}
	getLogger().Log(LevelError, "SQL failed log", fields)
}

// getCaller 返回调用栈摘要，跳过本包内部的帧
func getCaller() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		name := frame.Function
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if !strings.HasPrefix(name, "dbrecord.") {
			file := frame.File
			if idx := strings.LastIndexAny(file, `/\`); idx >= 0 {
				file = file[idx+1:]
			}
			stack = append(stack, fmt.Sprintf("%s(%s:%d)", name, file, frame.Line))
		}
		if !more || len(stack) >= 3 {
			break
		}
	}
	return strings.Join(stack, " <- ")
}

func logWith(level LogLevel, msg string, fields []map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	getLogger().Log(level, msg, f)
}

// LogInfo logs info message
func LogInfo(msg string, fields ...map[string]interface{}) {
	logWith(LevelInfo, msg, fields)
}

// LogWarn logs warning message
func LogWarn(msg string, fields ...map[string]interface{}) {
	logWith(LevelWarn, msg, fields)
}

// LogError logs error message
func LogError(msg string, fields ...map[string]interface{}) {
	logWith(LevelError, msg, fields)
}

// LogDebug logs debug message, only in debug mode
func LogDebug(msg string, fields ...map[string]interface{}) {
	if IsDebugEnabled() {
		logWith(LevelDebug, msg, fields)
	}
}

// Sync flushes any buffered log entries
func Sync() {
	if s, ok := getLogger().(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// InitLogger initializes the global slog logger with a specific level to console
func InitLogger(level string) {
	slogLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})))
	SetLogger(&slogLogger{logger: nil})
	if slogLevel == slog.LevelDebug {
		SetDebugMode(true)
	}
}
