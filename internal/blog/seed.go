package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	log "github.com/sirupsen/logrus"

	"github.com/techieonvacation/renderwise-backend/internal/blog/categories"
	"github.com/techieonvacation/renderwise-backend/internal/textutil"
)

var seedCategoryNames = []string{
	"Engineering", "Product", "Design", "Company News",
}

var seedTagPool = []string{
	"golang", "mongodb", "kubernetes", "frontend", "performance",
	"release", "tutorial", "career", "open-source", "security",
}

// Seed fills the store with generated posts for local development and
// automated tests. Roughly a third of the posts stay drafts.
func (s *Service) Seed(ctx context.Context, postsCount int) error {
	categoryIDs := make([]string, 0, len(seedCategoryNames))
	for _, name := range seedCategoryNames {
		category, err := s.categories.Create(ctx, categories.CategoryInput{
			Name:        name,
			Description: gofakeit.Sentence(8),
			Color:       gofakeit.HexColor(),
		})
		if errors.Is(err, categories.ErrSlugTaken) {
			// left over from a previous seed run
			category, err = s.categories.GetBySlug(ctx, textutil.GenerateSlug(name))
		}
		if err != nil {
			return fmt.Errorf("seed category %s: %w", name, err)
		}
		categoryIDs = append(categoryIDs, category.ID.Hex())
	}

	for i := 0; i < postsCount; i++ {
		title := strings.TrimSuffix(gofakeit.Sentence(gofakeit.Number(4, 9)), ".")
		content := gofakeit.Paragraph(gofakeit.Number(3, 8), 4, 12, "\n\n")

		status := StatusPublished
		if i%3 == 0 {
			status = StatusDraft
		}

		tagsCount := gofakeit.Number(1, 4)
		postTags := make([]string, 0, tagsCount)
		for j := 0; j < tagsCount; j++ {
			postTags = append(postTags, seedTagPool[gofakeit.Number(0, len(seedTagPool)-1)])
		}

		featured := gofakeit.Number(0, 9) == 0
		if _, err := s.Create(ctx, PostInput{
			Title:   fmt.Sprintf("%s %d", title, i),
			Content: content,
			Author: Author{
				Name:   gofakeit.Name(),
				Email:  gofakeit.Email(),
				Avatar: gofakeit.ImageURL(128, 128),
			},
			CategoryID: categoryIDs[gofakeit.Number(0, len(categoryIDs)-1)],
			Tags:       postTags,
			Status:     status,
			Featured:   &featured,
		}); err != nil {
			return fmt.Errorf("seed post %d: %w", i, err)
		}
	}

	log.Debugf("seeded %d blog posts", postsCount)
	return nil
}
