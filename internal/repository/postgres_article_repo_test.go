package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/hitoshi/sitefeed/internal/model"
)

func TestPostgresArticleRepo_GUIDScopedPerWebsite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	websites := NewPostgresWebsiteRepo(db)
	articles := NewPostgresArticleRepo(db)

	userID := createTestUser(t, db)
	w1, f1 := newWebsiteWithFeed(userID, "https://one.example.com/"+uuid.New().String())
	w2, f2 := newWebsiteWithFeed(userID, "https://two.example.com/"+uuid.New().String())
	for _, pair := range []struct {
		w *model.Website
		f *model.Feed
	}{{w1, f1}, {w2, f2}} {
		if err := websites.CreateWithFeed(ctx, pair.w, pair.f); err != nil {
			t.Fatalf("CreateWithFeed: %v", err)
		}
	}

	shared := model.ExtractedArticle{Title: "共通", Link: "https://example.com/x", PubDate: 1700000000000, GUID: "same-guid"}
	for _, id := range []string{w1.ID, w2.ID} {
		inserted, err := articles.Upsert(ctx, id, shared)
		if err != nil || !inserted {
			t.Fatalf("Upsert(%s) = (%v, %v), want (true, nil)", id, inserted, err)
		}
	}

	for _, id := range []string{w1.ID, w2.ID} {
		list, err := articles.ListLatestByWebsite(ctx, id, 50)
		if err != nil {
			t.Fatalf("ListLatestByWebsite: %v", err)
		}
		if len(list) != 1 || list[0].WebsiteID != id {
			t.Errorf("website %s: got %d articles, want its own copy", id, len(list))
		}
	}
}

func TestPostgresArticleRepo_ListLatestOrderAndLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	websites := NewPostgresWebsiteRepo(db)
	articles := NewPostgresArticleRepo(db)

	userID := createTestUser(t, db)
	w, f := newWebsiteWithFeed(userID, "https://example.com/"+uuid.New().String())
	if err := websites.CreateWithFeed(ctx, w, f); err != nil {
		t.Fatalf("CreateWithFeed: %v", err)
	}

	for i := 0; i < 5; i++ {
		_, err := articles.Upsert(ctx, w.ID, model.ExtractedArticle{
			Title:   fmt.Sprintf("記事%d", i),
			Link:    fmt.Sprintf("https://example.com/%d", i),
			PubDate: int64(1700000000000 + i*60000),
			GUID:    fmt.Sprintf("g%d", i),
		})
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	list, err := articles.ListLatestByWebsite(ctx, w.ID, 3)
	if err != nil {
		t.Fatalf("ListLatestByWebsite: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"g4", "g3", "g2"} {
		if list[i].GUID != want {
			t.Errorf("list[%d].GUID = %q, want %q", i, list[i].GUID, want)
		}
		if list[i].Description != nil {
			t.Errorf("list[%d].Description = %v, want nil", i, *list[i].Description)
		}
	}
}
