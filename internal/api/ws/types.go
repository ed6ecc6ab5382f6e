package ws

// Frame types
const (
	TypeKey     = "key"
	TypeCommand = "command"
	TypeResize  = "resize"
	TypePing    = "ping"
	TypeOutput  = "output"
	TypeExit    = "exit"
	TypePong    = "pong"
	TypeError   = "error"
)

// ClientMessage is a frame sent by the browser
type ClientMessage struct {
	Type    string `json:"type"`
	Code    *int   `json:"code,omitempty"`
	Command string `json:"command,omitempty"`
	Cols    int    `json:"cols,omitempty"`
	Rows    int    `json:"rows,omitempty"`
}

// ServerMessage is a frame pushed to the browser
type ServerMessage struct {
	Type    string `json:"type"`
	Stdout  string `json:"stdout,omitempty"`
	Message string `json:"message,omitempty"`
}
