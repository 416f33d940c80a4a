package lines

// Ending names the terminator style of a text.
type Ending string

const (
	EndingNone  Ending = "none"
	EndingLF    Ending = "lf"
	EndingCRLF  Ending = "crlf"
	EndingCR    Ending = "cr"
	EndingMixed Ending = "mixed"
)

// EndingCounts tallies terminators. A CR immediately followed by LF counts
// once, as CRLF.
type EndingCounts struct {
	LF   int `json:"lf"`
	CRLF int `json:"crlf"`
	CR   int `json:"cr"`
}

// Total returns the number of terminators.
func (c EndingCounts) Total() int { return c.LF + c.CRLF + c.CR }

// CountEndings tallies the terminators in decoded text.
func CountEndings(text string) EndingCounts {
	var c EndingCounts
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				c.CRLF++
				i++
			} else {
				c.CR++
			}
		case '\n':
			c.LF++
		}
	}
	return c
}

// Ending summarizes the counts. Any style reaching a tenth of all
// terminators is significant; two significant styles make the text mixed.
// Otherwise the dominant style wins, CRLF taking ties.
func (c EndingCounts) Ending() Ending {
	total := c.Total()
	if total == 0 {
		return EndingNone
	}

	threshold := total / 10
	if threshold < 1 {
		threshold = 1
	}
	significant := 0
	for _, n := range []int{c.LF, c.CRLF, c.CR} {
		if n >= threshold {
			significant++
		}
	}
	if significant > 1 {
		return EndingMixed
	}

	switch {
	case c.CRLF >= c.LF && c.CRLF >= c.CR:
		return EndingCRLF
	case c.CR > c.LF:
		return EndingCR
	default:
		return EndingLF
	}
}

// DetectEnding reports the terminator style of decoded text.
func DetectEnding(text string) Ending {
	return CountEndings(text).Ending()
}
