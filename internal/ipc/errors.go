package ipc

import "errors"

// ErrIPC wraps a wrong-role IPC operation: a kitchen-role Manager has no
// business creating/removing kitchen channels or addressing other
// kitchens, since only reception ever learns another kitchen's name.
var ErrIPC = errors.New("ipc: wrong-role operation")
