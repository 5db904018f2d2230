package render

import "errors"

var (
	ErrUnknownStageKind = errors.New("unknown stage kind")
	ErrDuplicateStage   = errors.New("duplicate stage id")
	ErrEmptyStageID     = errors.New("stage id is empty")
)
