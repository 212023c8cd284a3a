package finality

import "errors"

var (
	ErrWrongTarget  = errors.New("finality: vote targets a different block than this round")
	ErrEquivocation = errors.New("finality: voter signed two different targets in this round")
)
