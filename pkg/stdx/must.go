package stdx

// Must0 panics if err is not nil.
//
// It is meant for initialization paths where an error means the binary itself
// is broken, such as reading a file that was embedded at build time.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, or panics if err is not nil.
//
// Example usage:
//
//	raw := Must1(configs.ReadFile("configs/anthropic.json"))
//
// T: The type of the value to be returned.
// v: The value to be returned if err is nil.
// err: The error to check.
func Must1[T any](v T, err error) T {
	Must0(err)
	return v
}
