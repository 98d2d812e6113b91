package pipeline

import (
	"errors"

	"github.com/ppiankov/factstudy/internal/cite"
	"github.com/ppiankov/factstudy/internal/excerpt"
	"github.com/ppiankov/factstudy/internal/extract"
	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/render"
	"github.com/ppiankov/factstudy/internal/results"
)

// ErrorKind classifies a render failure
func ErrorKind(err error) model.IssueKind {
	var notFound *extract.SourceNotFoundError

	switch {
	case errors.Is(err, render.ErrUnsupportedGroup):
		return model.IssueUnsupported
	case errors.Is(err, excerpt.ErrFragmentNotFound),
		errors.Is(err, results.ErrClaimIndex),
		errors.Is(err, render.ErrUnknownGroup):
		return model.IssueLookupMiss
	case errors.Is(err, cite.ErrEmptyScores),
		errors.Is(err, cite.ErrInvalidScore),
		errors.Is(err, extract.ErrPageIndex),
		errors.Is(err, extract.ErrSentenceNotLocated),
		errors.Is(err, render.ErrCitationRange),
		errors.Is(err, render.ErrMissingTooltip),
		errors.As(err, &notFound):
		return model.IssueShape
	default:
		return model.IssueResource
	}
}
