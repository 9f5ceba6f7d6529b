package script

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/dop251/goja"
)

// Math.seedrandom is an ARC4 keystream read in 6-byte chunks, so a seed
// yields the same sequence it does in the browser library of that name.
const (
	arc4Width   = 256
	arc4Chunks  = 6
	startDenom  = 281474976710656.0  // 256^6
	significant = 4503599627370496.0 // 2^52
	overflowAt  = 9007199254740992.0 // 2^53
)

type arc4 struct {
	i, j int
	s    [arc4Width]int
}

func newARC4(key []int) *arc4 {
	if len(key) == 0 {
		key = []int{0}
	}

	a := &arc4{}
	for i := range a.s {
		a.s[i] = i
	}
	j := 0
	for i := 0; i < arc4Width; i++ {
		t := a.s[i]
		j = (j + t + key[i%len(key)]) & (arc4Width - 1)
		a.s[i], a.s[j] = a.s[j], t
	}

	// The first 256 outputs are discarded
	a.next(arc4Width)
	return a
}

// next concatenates the next count outputs into one number
func (a *arc4) next(count int) float64 {
	var r float64
	for ; count > 0; count-- {
		a.i = (a.i + 1) & (arc4Width - 1)
		t := a.s[a.i]
		a.j = (a.j + t) & (arc4Width - 1)
		u := a.s[a.j]
		a.s[a.i], a.s[a.j] = u, t
		r = r*arc4Width + float64(a.s[(t+u)&(arc4Width-1)])
	}
	return r
}

// Float64 returns a double in [0, 1) with every mantissa bit random
func (a *arc4) Float64() float64 {
	n := a.next(arc4Chunks)
	d := startDenom
	var x uint32
	for n < significant {
		n = (n + float64(x)) * arc4Width
		d *= arc4Width
		x = uint32(a.next(1))
	}
	for n >= overflowAt {
		n /= 2
		d /= 2
		x >>= 1
	}
	return (n + float64(x)) / d
}

// mixKey folds a seed string into an ARC4 key and returns the shortened
// seed equivalent to that key
func mixKey(seed string) ([]int, string) {
	units := utf16.Encode([]rune(seed))
	key := make([]int, 0, arc4Width)
	smear := int32(0)
	for j, c := range units {
		k := j & (arc4Width - 1)
		if k == len(key) {
			key = append(key, 0)
		}
		smear ^= int32(key[k] * 19)
		key[k] = int(smear+int32(c)) & (arc4Width - 1)
	}

	var b strings.Builder
	for _, k := range key {
		b.WriteRune(rune(k))
	}
	return key, b.String()
}

// flattenSeed renders a seed value the way it is stringified before mixing:
// strings as is, other primitives with a trailing NUL, objects as their
// flattened properties up to three levels deep
func flattenSeed(v goja.Value, depth int) string {
	if obj, ok := v.(*goja.Object); ok && depth > 0 {
		var parts []string
		for _, name := range obj.Keys() {
			if strings.Index(name, "S") < 5 {
				parts = append(parts, flattenSeed(obj.Get(name), depth-1))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ",")
		}
	}
	if s, ok := v.Export().(string); ok {
		if _, isObj := v.(*goja.Object); !isObj {
			return s
		}
	}
	return v.String() + "\x00"
}

// seededSource returns a deterministic Math.random source for a seed string
func seededSource(seed string) goja.RandSource {
	key, _ := mixKey(seed)
	return newARC4(key).Float64
}

// bindRandom adds Math.seedrandom(seed). With a seed it makes Math.random
// deterministic; without one it seeds from the clock. It returns the mixed
// seed, which reproduces the sequence when passed back.
func bindRandom(vm *goja.Runtime) error {
	math := vm.Get("Math").ToObject(vm)
	return math.Set("seedrandom", func(call goja.FunctionCall) goja.Value {
		seed := strconv.FormatInt(time.Now().UnixNano(), 10)
		if arg := call.Argument(0); !goja.IsUndefined(arg) {
			seed = flattenSeed(arg, 3)
		}
		key, mixed := mixKey(seed)
		vm.SetRandSource(newARC4(key).Float64)
		return vm.ToValue(mixed)
	})
}
