package lock

import (
	"github.com/lokeshkvn/cpachecker/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	LockID func(...interface{}) string
	Count  func(...interface{}) string
	Effect func(...interface{}) string
	Attr   func(...interface{}) string
}{
	LockID: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgYellow).SprintFunc())(is...)
	},
	Count: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgCyan).SprintFunc())(is...)
	},
	Effect: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgMagenta).SprintFunc())(is...)
	},
	Attr: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed).SprintFunc())(is...)
	},
}
