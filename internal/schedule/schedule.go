// Package schedule parses the tick/port/value text format used to
// drive a run's I/O environment.
package schedule

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/yasnov/algstack/internal/ioctl"
	"github.com/yasnov/algstack/internal/isa"
)

// Parse reads schedule lines of "<tick> <port> <value>" from r. Blank
// lines and lines starting with "#" are ignored. Port 1 (CH) values
// may be a character literal, an escape, a hex integer, or a bare
// character; other ports take decimal or 0x-prefixed hex.
func Parse(r io.Reader) ([]ioctl.Event, error) {
	var events []ioctl.Event
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 3 {
			return nil, errors.Errorf("schedule: bad line %d: expected 3 fields, got %d", lineNo, len(parts))
		}
		tick, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, errors.Wrapf(err, "schedule: bad tick on line %d", lineNo)
		}
		portNum, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, errors.Wrapf(err, "schedule: bad port on line %d", lineNo)
		}
		port := isa.Port(portNum)

		var value uint32
		if port == isa.PortCH {
			v, err := decodeCharToken(parts[2])
			if err != nil {
				return nil, errors.Wrapf(err, "schedule: bad value on line %d", lineNo)
			}
			value = v
		} else {
			v, err := decodeNumericToken(parts[2])
			if err != nil {
				return nil, errors.Wrapf(err, "schedule: bad value on line %d", lineNo)
			}
			value = v
		}
		events = append(events, ioctl.Event{Tick: tick, Port: port, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "schedule: read failed")
	}
	return events, nil
}

func decodeNumericToken(tok string) (uint32, error) {
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		n, err := strconv.ParseUint(tok[2:], 16, 32)
		return uint32(n), err
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	return uint32(n), err
}

func decodeCharToken(tok string) (uint32, error) {
	switch tok {
	case `\n`:
		return 10, nil
	case `\t`:
		return 9, nil
	case `\r`:
		return 13, nil
	case `\0`:
		return 0, nil
	}
	if strings.HasPrefix(tok, `\x`) && len(tok) == 4 {
		n, err := strconv.ParseUint(tok[2:], 16, 8)
		return uint32(n), err
	}
	if len(tok) >= 3 && ((tok[0] == '\'' && tok[len(tok)-1] == '\'') || (tok[0] == '"' && tok[len(tok)-1] == '"')) {
		return uint32(tok[1]), nil
	}
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		n, err := strconv.ParseUint(tok[2:], 16, 32)
		return uint32(n), err
	}
	if len(tok) >= 1 {
		return uint32(tok[0]), nil
	}
	return 0, errors.New("empty token")
}
