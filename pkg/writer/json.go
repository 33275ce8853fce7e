package writer

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/prime-sieve/pkg/model"
)

const jsonChunk = 64 * 1024

// WriteJSON writes r as one compact JSON document followed by a newline.
// The metadata goes through encoding/json; the prime list is appended in
// chunks so it is never copied into a second large buffer.
func WriteJSON(w io.Writer, r *model.SieveResult) error {
	meta := *r
	meta.Primes = nil
	head, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	if len(r.Primes) == 0 {
		_, err = w.Write(append(head, '\n'))
		return err
	}

	buf := make([]byte, 0, jsonChunk+32)
	buf = append(buf, head[:len(head)-1]...)
	buf = append(buf, `,"primes":[`...)
	for i, p := range r.Primes {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, p, 10)
		if len(buf) >= jsonChunk {
			if _, err := w.Write(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	buf = append(buf, "]}\n"...)
	_, err = w.Write(buf)
	return err
}
