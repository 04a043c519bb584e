package controller

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Simulator is an in-process mount controller speaking the wire protocol.
// It backs the sim:// connection for bench work without hardware.
type Simulator struct {
	mu       sync.Mutex
	ra       string
	dec      string
	tracking bool
	catalogs [][]string
	selected int
	cursor   int
}

// defaultCatalogs are the simulator's object libraries, 0-based.
var defaultCatalogs = [][]string{
	{
		"M31,GAL,00:42:44,+41*16:09",
		"M42,DN,05:35:17,-05*23:28",
		"M45,OC,03:47:24,+24*07:00",
	},
	{
		"NGC7000,DN,20:59:17,+44*31:44",
		"NGC869,OC,02:20:00,+57*08:00",
	},
	{},
}

// NewSimulator creates a simulator parked at a fixed position.
func NewSimulator() *Simulator {
	catalogs := make([][]string, len(defaultCatalogs))
	for i, c := range defaultCatalogs {
		catalogs[i] = append([]string(nil), c...)
	}
	return &Simulator{
		ra:       "12:34:56",
		dec:      "+45*00:00",
		catalogs: catalogs,
		selected: -1,
	}
}

// Connect returns the client end of a new in-memory link.
func (s *Simulator) Connect() net.Conn {
	client, server := net.Pipe()
	go s.serve(server)
	return client
}

// serve answers commands until the connection closes.
func (s *Simulator) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		frame, err := r.ReadString(terminator)
		if err != nil {
			return
		}
		// Ignore line noise before the start of a command.
		if i := strings.IndexByte(frame, ':'); i >= 0 {
			frame = frame[i:]
		} else {
			continue
		}

		reply, kind := s.Handle(frame)
		switch kind {
		case replyNone:
			continue
		case replyBool:
			reply = reply[:1]
		default:
			reply += string(terminator)
		}
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

// Handle answers one command and reports the reply shape.
func (s *Simulator) Handle(cmd string) (string, replyKind) {
	kind := replyKindOf(cmd)

	s.mu.Lock()
	defer s.mu.Unlock()

	body := strings.TrimSuffix(strings.TrimPrefix(cmd, ":"), string(terminator))

	switch {
	case body == "GVP":
		return "On-Step", kind
	case body == "GVN":
		return "10.21h", kind
	case body == "GR":
		return s.ra, kind
	case body == "GD":
		return s.dec, kind
	case body == "GU":
		if s.tracking {
			return "nNpH", kind
		}
		return "nNnpH", kind
	case strings.HasPrefix(body, "Sr"):
		s.ra = body[2:]
		return "1", kind
	case strings.HasPrefix(body, "Sd"):
		s.dec = body[2:]
		return "1", kind
	case body == "Te":
		s.tracking = true
		return "1", kind
	case body == "Td":
		s.tracking = false
		return "1", kind
	case strings.HasPrefix(body, "Lo"):
		n, err := strconv.Atoi(body[2:])
		if err != nil || n < 0 || n >= len(s.catalogs) {
			return "0", kind
		}
		s.selected = n
		s.cursor = 0
		return "1", kind
	case body == "LR":
		if s.selected < 0 || s.cursor >= len(s.catalogs[s.selected]) {
			return ",", kind
		}
		rec := s.catalogs[s.selected][s.cursor]
		s.cursor++
		return rec, kind
	}

	return "0", kind
}
