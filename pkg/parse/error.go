package parse

import "fmt"

type Error struct {
	Position int
	Message  string
}

func (err Error) Error() string {
	return fmt.Sprintf("%v: %v", err.Position, err.Message)
}
