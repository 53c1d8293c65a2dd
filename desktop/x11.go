// Package desktop talks to the X11 desktop natively. Windows come from EWMH
// properties, input goes through XTEST, and frames are root-window grabs.
//
// Information Hiding:
// - X protocol connection and extension setup
// - EWMH property names and window id formats
// - Image encoding of captured regions
package desktop

import (
	"context"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/keybind"

	"github.com/richinex/firemaker/model"
)

// Display is a connection to the X server with XTEST enabled.
type Display struct {
	xu *xgbutil.XUtil
}

// Open connects to the display named by $DISPLAY.
func Open() (*Display, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X display: %w", err)
	}
	if err := xtest.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("init XTEST extension: %w", err)
	}
	keybind.Initialize(xu)
	return &Display{xu: xu}, nil
}

// Close closes the connection.
func (d *Display) Close() error {
	d.xu.Conn().Close()
	return nil
}

// StackingOrder returns managed client windows from bottom to top.
func (d *Display) StackingOrder() ([]uint32, error) {
	wins, err := ewmh.ClientListStackingGet(d.xu)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, len(wins))
	for i, w := range wins {
		ids[i] = uint32(w)
	}
	return ids, nil
}

// ActiveWindow returns the focused client window.
func (d *Display) ActiveWindow() (uint32, error) {
	w, err := ewmh.ActiveWindowGet(d.xu)
	return uint32(w), err
}

// WindowName returns the EWMH name, falling back to WM_NAME.
func (d *Display) WindowName(id uint32) (string, error) {
	if name, err := ewmh.WmNameGet(d.xu, xproto.Window(id)); err == nil && name != "" {
		return name, nil
	}
	return icccm.WmNameGet(d.xu, xproto.Window(id))
}

// WindowHidden reports whether the window is minimized.
func (d *Display) WindowHidden(id uint32) bool {
	states, err := ewmh.WmStateGet(d.xu, xproto.Window(id))
	if err != nil {
		return false
	}
	for _, s := range states {
		if s == "_NET_WM_STATE_HIDDEN" {
			return true
		}
	}
	return false
}

// WindowGeometry returns the client area in root coordinates, without
// window manager decorations.
func (d *Display) WindowGeometry(id uint32) (model.WindowRect, error) {
	conn, win := d.xu.Conn(), xproto.Window(id)
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return model.WindowRect{}, fmt.Errorf("geometry of window %d: %w", id, err)
	}
	origin, err := xproto.TranslateCoordinates(conn, win, d.xu.RootWin(), 0, 0).Reply()
	if err != nil {
		return model.WindowRect{}, fmt.Errorf("position of window %d: %w", id, err)
	}
	return model.WindowRect{
		X:      int(origin.DstX),
		Y:      int(origin.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// MoveMouse warps the pointer to absolute (x, y).
func (d *Display) MoveMouse(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	px, py, err := screenPoint(x, y)
	if err != nil {
		return err
	}
	return d.fake(xproto.MotionNotify, 0, px, py)
}

// MouseDown presses the left button.
func (d *Display) MouseDown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.fake(xproto.ButtonPress, xproto.ButtonIndex1, 0, 0)
}

// MouseUp releases the left button.
func (d *Display) MouseUp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.fake(xproto.ButtonRelease, xproto.ButtonIndex1, 0, 0)
}

// KeyTap presses and releases a key by X keysym name, e.g. "Escape".
func (d *Display) KeyTap(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	codes := keybind.StrToKeycodes(d.xu, key)
	if len(codes) == 0 {
		return fmt.Errorf("no keycode for key %q", key)
	}
	if err := d.fake(xproto.KeyPress, byte(codes[0]), 0, 0); err != nil {
		return err
	}
	return d.fake(xproto.KeyRelease, byte(codes[0]), 0, 0)
}

// CursorPosition returns the pointer's absolute position.
func (d *Display) CursorPosition(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	reply, err := xproto.QueryPointer(d.xu.Conn(), d.xu.RootWin()).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("query pointer: %w", err)
	}
	return int(reply.RootX), int(reply.RootY), nil
}

func (d *Display) fake(event, detail byte, x, y int16) error {
	err := xtest.FakeInputChecked(d.xu.Conn(), event, detail, 0, d.xu.RootWin(), x, y, 0).Check()
	if err != nil {
		return fmt.Errorf("fake input event %d: %w", event, err)
	}
	return nil
}

// screenPoint converts to the protocol's 16-bit coordinates.
func screenPoint(x, y int) (int16, int16, error) {
	const lo, hi = -1 << 15, 1<<15 - 1
	if x < lo || x > hi || y < lo || y > hi {
		return 0, 0, fmt.Errorf("point (%d, %d) outside the X coordinate range", x, y)
	}
	return int16(x), int16(y), nil
}
