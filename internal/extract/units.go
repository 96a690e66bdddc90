package extract

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// unit is one independently readable part of a document.
type unit struct {
	name string
	read func() (string, error)
}

// join reads every unit in order. Failing or panicking units contribute "".
func (e *Extractor) join(ext string, units []unit, sep string) string {
	texts := make([]string, 0, len(units))
	for _, u := range units {
		text, err := readUnit(u)
		if err != nil {
			e.logger.Debug("unit yielded no text",
				zap.String("format", ext),
				zap.String("unit", u.name),
				zap.Error(err))
			text = ""
		}
		texts = append(texts, text)
	}
	return strings.TrimSpace(strings.Join(texts, sep))
}

func readUnit(u unit) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reading %s: %v", u.name, r)
		}
	}()
	return u.read()
}
