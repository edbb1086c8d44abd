package gateio

// Listener receives decoded server messages for one connection.
type Listener interface {
	OnEvent(env *ServerEnvelope)
	// OnFailure is called at most once, and never after a close started locally.
	OnFailure(err error)
}

// ClosingListener is implemented by listeners that want close notifications.
type ClosingListener interface {
	OnClosing(code int, reason string)
}

// DecodeErrorListener is implemented by listeners that want frames that
// failed to decode. Without it such frames are logged and skipped.
type DecodeErrorListener interface {
	OnDecodeError(err error)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are no-ops.
type ListenerFuncs struct {
	Event       func(env *ServerEnvelope)
	Failure     func(err error)
	Closing     func(code int, reason string)
	DecodeError func(err error)
}

func (f ListenerFuncs) OnEvent(env *ServerEnvelope) {
	if f.Event != nil {
		f.Event(env)
	}
}

func (f ListenerFuncs) OnFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

func (f ListenerFuncs) OnClosing(code int, reason string) {
	if f.Closing != nil {
		f.Closing(code, reason)
	}
}

func (f ListenerFuncs) OnDecodeError(err error) {
	if f.DecodeError != nil {
		f.DecodeError(err)
	}
}
