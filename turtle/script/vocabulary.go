package script

import (
	"github.com/dop251/goja"

	"github.com/wricardo/stitch-turtle/turtle/engine"
)

// Aliases maps each vocabulary command to its shorthand names
var Aliases = map[string][]string{
	"forward":   {"f", "moveForward"},
	"turnLeft":  {"left", "l"},
	"turnRight": {"right", "r"},
	"turnTo":    {"turn", "t"},
	"penUp":     {"u"},
	"penDown":   {"d"},
	"color":     nil,
	"goTo":      {"goto", "g"},
	"moveTo":    nil,
	"moveBy":    nil,
	"lineTo":    nil,
	"lineBy":    nil,
}

// bind installs the turtle vocabulary into the runtime's global scope
func bind(vm *goja.Runtime, t engine.Engine) error {
	num := func(call goja.FunctionCall, i int) float64 {
		return call.Argument(i).ToFloat()
	}
	check := func(err error) goja.Value {
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}

	commands := map[string]func(goja.FunctionCall) goja.Value{
		"forward": func(call goja.FunctionCall) goja.Value {
			return check(t.Forward(num(call, 0)))
		},
		"turnLeft": func(call goja.FunctionCall) goja.Value {
			t.TurnLeft(num(call, 0))
			return goja.Undefined()
		},
		"turnRight": func(call goja.FunctionCall) goja.Value {
			t.TurnRight(num(call, 0))
			return goja.Undefined()
		},
		"turnTo": func(call goja.FunctionCall) goja.Value {
			t.TurnTo(num(call, 0))
			return goja.Undefined()
		},
		"penUp": func(call goja.FunctionCall) goja.Value {
			t.PenUp()
			return goja.Undefined()
		},
		"penDown": func(call goja.FunctionCall) goja.Value {
			t.PenDown()
			return goja.Undefined()
		},
		"color": func(call goja.FunctionCall) goja.Value {
			c, ok := call.Argument(0).Export().(string)
			if !ok {
				panic(vm.NewTypeError("color expects a CSS color string"))
			}
			t.Color(c)
			return goja.Undefined()
		},
		"goTo": func(call goja.FunctionCall) goja.Value {
			return check(t.GoTo(num(call, 0), num(call, 1)))
		},
		"moveTo": func(call goja.FunctionCall) goja.Value {
			return check(t.MoveTo(num(call, 0), num(call, 1)))
		},
		"moveBy": func(call goja.FunctionCall) goja.Value {
			return check(t.MoveBy(num(call, 0), num(call, 1)))
		},
		"lineTo": func(call goja.FunctionCall) goja.Value {
			return check(t.LineTo(num(call, 0), num(call, 1)))
		},
		"lineBy": func(call goja.FunctionCall) goja.Value {
			return check(t.LineBy(num(call, 0), num(call, 1)))
		},
	}

	for name, fn := range commands {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
		for _, alias := range Aliases[name] {
			if err := vm.Set(alias, fn); err != nil {
				return err
			}
		}
	}

	return bindRandom(vm)
}
