//go:build !debug_mem_utils

package memutils

const (
	// CorruptionDetectionEnabled is true when freed memory is filled with a marker that is
	// verified before the memory is handed out again
	CorruptionDetectionEnabled = false
)

// ValidateMagicValue verifies that the marker written by WriteMagicValue is still present across region.
// This method always returns true unless the debug_mem_utils build tag is present.
func ValidateMagicValue(region []byte) bool {
	return true
}

// WriteMagicValue fills region with an easy-to-identify marker.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(region []byte) {
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
}

// DebugAssert panics with the formatted message if cond is false.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugAssert(cond bool, format string, args ...any) {
}
