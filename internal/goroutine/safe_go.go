package goroutine

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
)

// Logger — минимальный интерфейс для журналирования паник.
type Logger interface {
	Errorf(format string, args ...interface{})
}

type stderrLogger struct{}

func (stderrLogger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
}

var log Logger = stderrLogger{}

// SetLogger подменяет логгер паник; вызывается один раз при старте.
func SetLogger(l Logger) {
	if l != nil {
		log = l
	}
}

// SafeGo запускает горутину, перехватывая panic, чтобы фоновая рассылка
// не роняла процесс.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("panic in goroutine: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeGoWithContext — то же, но для функций, принимающих контекст.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	SafeGo(func() { fn(ctx) })
}
