package book

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

/*
AddNote appends a note to the referenced book. The book row is locked for the whole
check-and-insert, so two concurrent notes from the same contributor cannot both land.
*/
func (s *Service) AddNote(ctx context.Context, ref string, req NoteRequest) (Note, error) {
	if err := FilledNoteFields(req); err != nil {
		return Note{}, err
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	var added Note
	err := s.inTx(ctx, func(repo Repository) error {
		b, err := Resolve(ctx, repo, ref)
		if err != nil {
			return err
		}
		if err := repo.LockBook(ctx, b.Key); err != nil {
			return err
		}

		notes, err := repo.ListNotes(ctx, b.Key)
		if err != nil {
			return err
		}
		contributor := strings.TrimSpace(req.Contributor)
		for _, n := range notes {
			if n.Contributor == contributor {
				return fmt.Errorf("adding note to book %s: %w", b.ID, ErrResponseNoteDuplicateContributor)
			}
		}

		now := s.now()
		added, err = repo.InsertNote(ctx, b.Key, Note{
			ID:          uuid.NewString(),
			Text:        req.Text,
			Contributor: contributor,
			ImageURL:    req.ImageURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	if err != nil {
		return Note{}, s.fail("add note", err, logrus.Fields{"reference": ref})
	}
	return added, nil
}

// UpdateNote replaces the note with the given id. Contributor uniqueness is not re-checked.
func (s *Service) UpdateNote(ctx context.Context, ref, noteID string, req NoteRequest) (Note, error) {
	return s.updateNote(ctx, ref, req, func([]Note) (string, error) {
		return noteID, nil
	})
}

/*
UpdateNoteAt replaces the note currently at index. The index is resolved to the note id
while the book row is locked, so it always refers to the list as it is at that moment.
*/
func (s *Service) UpdateNoteAt(ctx context.Context, ref string, index int, req NoteRequest) (Note, error) {
	return s.updateNote(ctx, ref, req, func(notes []Note) (string, error) {
		return noteIDAt(notes, index)
	})
}

func (s *Service) updateNote(ctx context.Context, ref string, req NoteRequest, pick func([]Note) (string, error)) (Note, error) {
	if err := FilledNoteFields(req); err != nil {
		return Note{}, err
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	var updated Note
	err := s.inTx(ctx, func(repo Repository) error {
		b, notes, err := lockedNotes(ctx, repo, ref)
		if err != nil {
			return err
		}
		noteID, err := pick(notes)
		if err != nil {
			return err
		}

		updated, err = repo.UpdateNote(ctx, b.Key, Note{
			ID:          noteID,
			Text:        req.Text,
			Contributor: strings.TrimSpace(req.Contributor),
			ImageURL:    req.ImageURL,
			UpdatedAt:   s.now(),
		})
		return err
	})
	if err != nil {
		return Note{}, s.fail("update note", err, logrus.Fields{"reference": ref})
	}
	return updated, nil
}

func (s *Service) DeleteNote(ctx context.Context, ref, noteID string) error {
	return s.deleteNote(ctx, ref, func([]Note) (string, error) {
		return noteID, nil
	})
}

// DeleteNoteAt removes the note currently at index; later notes shift down by one.
func (s *Service) DeleteNoteAt(ctx context.Context, ref string, index int) error {
	return s.deleteNote(ctx, ref, func(notes []Note) (string, error) {
		return noteIDAt(notes, index)
	})
}

func (s *Service) deleteNote(ctx context.Context, ref string, pick func([]Note) (string, error)) error {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	err := s.inTx(ctx, func(repo Repository) error {
		b, notes, err := lockedNotes(ctx, repo, ref)
		if err != nil {
			return err
		}
		noteID, err := pick(notes)
		if err != nil {
			return err
		}
		return repo.DeleteNote(ctx, b.Key, noteID)
	})
	if err != nil {
		return s.fail("delete note", err, logrus.Fields{"reference": ref})
	}
	return nil
}

/* Resolves the book, locks its row and reads its notes in position order. */
func lockedNotes(ctx context.Context, repo Repository, ref string) (Book, []Note, error) {
	b, err := Resolve(ctx, repo, ref)
	if err != nil {
		return Book{}, nil, err
	}
	if err := repo.LockBook(ctx, b.Key); err != nil {
		return Book{}, nil, err
	}
	notes, err := repo.ListNotes(ctx, b.Key)
	if err != nil {
		return Book{}, nil, err
	}
	return b, notes, nil
}

func noteIDAt(notes []Note, index int) (string, error) {
	if index < 0 || index >= len(notes) {
		return "", fmt.Errorf("note at index %d: %w", index, ErrResponseNoteNotFound)
	}
	return notes[index].ID, nil
}
