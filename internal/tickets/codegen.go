package tickets

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Unambiguous alphabet: no 0/O or 1/I
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeRandomLength = 8
	seatsPerRow      = 4
)

// CodeGenerator produces candidate ticket codes; uniqueness is enforced by the caller
type CodeGenerator interface {
	Generate() (string, error)
}

type randomCodeGenerator struct {
	prefix string
	now    func() time.Time
}

func NewCodeGenerator(prefix string) CodeGenerator {
	return &randomCodeGenerator{
		prefix: strings.ToUpper(strings.TrimSpace(prefix)),
		now:    time.Now,
	}
}

func (g *randomCodeGenerator) Generate() (string, error) {
	randomPart := make([]byte, codeRandomLength)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		randomPart[i] = codeAlphabet[num.Int64()]
	}

	date := g.now().UTC().Format("060102")
	if g.prefix == "" {
		return fmt.Sprintf("%s-%s", date, randomPart), nil
	}
	return fmt.Sprintf("%s-%s-%s", g.prefix, date, randomPart), nil
}

// SeatLabel maps a 1-based passenger position to a seat: 1 -> A1, 4 -> A4, 5 -> B1, 105 -> AA1
func SeatLabel(position int) string {
	if position < 1 {
		position = 1
	}
	row := (position - 1) / seatsPerRow
	seat := (position-1)%seatsPerRow + 1
	return rowLabel(row) + fmt.Sprintf("%d", seat)
}

func rowLabel(row int) string {
	label := ""
	for n := row + 1; n > 0; n = (n - 1) / 26 {
		label = string(rune('A'+(n-1)%26)) + label
	}
	return label
}
