package common

// Virtual key codes for the demo window's input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyA = 65 // A key: re-enable automatic quality
	KeyQ = 81 // Q key: quit

	Key1 = 49 // 1 key: force low quality
	Key2 = 50 // 2 key: force medium quality
	Key3 = 51 // 3 key: force high quality
)
