package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

var errNotCreated = errors.New("window is not initialized")

// glfwWindow holds the GLFW handle of an engineWindow.
type glfwWindow struct {
	parent *engineWindow
	handle *glfw.Window
	closed bool
}

// newPlatformWindow creates a client-API-less GLFW window and wires its callbacks to w.
// The calling goroutine stays locked to its OS thread.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// Frames are produced by a headless wgpu device; the window needs no GL context.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	handle, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}

	gw := &glfwWindow{parent: w, handle: handle}
	gw.installCallbacks()
	w.internalWindow = gw

	// High-DPI framebuffers differ from the requested size.
	w.width, w.height = handle.GetFramebufferSize()
	return nil
}

// installCallbacks forwards GLFW input and window events to the parent's callbacks.
func (gw *glfwWindow) installCallbacks() {
	w := gw.parent

	gw.handle.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if key == glfw.KeyEscape {
			gw.handle.SetShouldClose(true)
			return
		}
		if w.onKeyDown != nil {
			w.onKeyDown(uint32(key))
		}
	})

	gw.handle.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	gw.handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	// Minimizing reports hidden; restoring reports visible.
	gw.handle.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		if w.onVisibility != nil {
			w.onVisibility(!iconified)
		}
	})
}

// platformSurfaceSize returns the larger side of the primary monitor's video mode.
func platformSurfaceSize() (int, bool) {
	monitor := glfw.GetPrimaryMonitor()
	if monitor == nil {
		return 0, false
	}
	mode := monitor.GetVideoMode()
	if mode == nil {
		return 0, false
	}
	return max(mode.Width, mode.Height), true
}

func platformWindow(w *engineWindow) (*glfwWindow, error) {
	gw, ok := w.internalWindow.(*glfwWindow)
	if !ok || gw == nil {
		return nil, errNotCreated
	}
	return gw, nil
}

// platformIsRunningCheck reports whether the window exists, is not closed and has not been
// asked to close.
func platformIsRunningCheck(w *engineWindow) bool {
	gw, err := platformWindow(w)
	if err != nil {
		return false
	}
	return !gw.closed && !gw.handle.ShouldClose()
}

// platformRequestClose flags the window to close. glfwSetWindowShouldClose is callable from
// any thread.
func platformRequestClose(w *engineWindow) {
	if gw, err := platformWindow(w); err == nil && !gw.closed {
		gw.handle.SetShouldClose(true)
	}
}

// platformCloseWindow destroys the window and terminates GLFW. Closing twice is a no-op.
func platformCloseWindow(w *engineWindow) error {
	gw, err := platformWindow(w)
	if err != nil {
		return err
	}
	if gw.closed {
		return nil
	}
	gw.closed = true
	gw.handle.Destroy()
	glfw.Terminate()
	return nil
}

// platformProcessMessages drains pending events without blocking.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func platformProcessMessages(w *engineWindow) bool {
	if !platformIsRunningCheck(w) {
		return false
	}
	glfw.PollEvents()
	return platformIsRunningCheck(w)
}
