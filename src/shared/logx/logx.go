// Package logx is the bot's console logger: leveled, colored, with an
// optional component tag per line.
package logx

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	infoColor      = color.New(color.FgWhite)
	successColor   = color.New(color.FgGreen)
	warnColor      = color.New(color.FgHiYellow)
	errorColor     = color.New(color.FgHiRed)
	fatalColor     = color.New(color.FgHiRed, color.Bold)
	timeColor      = color.New(color.FgGreen)
	componentColor = color.New(color.FgCyan)

	mu sync.Mutex
)

func emit(levelColor *color.Color, level, component, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	fmt.Fprintf(os.Stdout, "%s %s",
		timeColor.Sprint(time.Now().UTC().Format("02.01.2006 15:04:05")),
		levelColor.Sprintf("[%s]", level))
	if component != "" {
		fmt.Fprintf(os.Stdout, " %s", componentColor.Sprintf("[%s]", component))
	}
	fmt.Fprintf(os.Stdout, " %s\n", fmt.Sprintf(format, v...))
}

func Info(component, format string, v ...interface{}) {
	emit(infoColor, "INFO", component, format, v...)
}

func Success(component, format string, v ...interface{}) {
	emit(successColor, "SUCCESS", component, format, v...)
}

func Warn(component, format string, v ...interface{}) {
	emit(warnColor, "WARNING", component, format, v...)
}

func Error(component, format string, v ...interface{}) {
	emit(errorColor, "ERROR", component, format, v...)
}

func Fatal(component, format string, v ...interface{}) {
	emit(fatalColor, "FATAL", component, format, v...)
	os.Exit(1)
}
