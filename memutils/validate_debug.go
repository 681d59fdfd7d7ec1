//go:build debug_mem_utils

package memutils

import (
	"encoding/binary"
	"fmt"
)

const (
	// CorruptionDetectionEnabled is true when freed memory is filled with a marker that is
	// verified before the memory is handed out again
	CorruptionDetectionEnabled = true
	// corruptionDetectionMagicValue is a 4-byte pattern that is copied across freed memory
	corruptionDetectionMagicValue uint32 = 0x7F84E666
)

func magicByte(index int) byte {
	return byte(corruptionDetectionMagicValue >> (8 * uint(index&3)))
}

// WriteMagicValue fills region with an easy-to-identify marker.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(region []byte) {
	i := 0
	for ; i+4 <= len(region); i += 4 {
		binary.LittleEndian.PutUint32(region[i:], corruptionDetectionMagicValue)
	}
	for ; i < len(region); i++ {
		region[i] = magicByte(i)
	}
}

// ValidateMagicValue verifies that the marker written by WriteMagicValue is still present across region.
// This method always returns true unless the debug_mem_utils build tag is present.
func ValidateMagicValue(region []byte) bool {
	i := 0
	for ; i+4 <= len(region); i += 4 {
		if binary.LittleEndian.Uint32(region[i:]) != corruptionDetectionMagicValue {
			return false
		}
	}
	for ; i < len(region); i++ {
		if region[i] != magicByte(i) {
			return false
		}
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}

// DebugAssert panics with the formatted message if cond is false.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugAssert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
