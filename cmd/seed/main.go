package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shinyyama/community-backend/internal/config"
	"github.com/shinyyama/community-backend/internal/db"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/repository"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DBDriver == config.DriverMemory {
		return fmt.Errorf("nothing to seed with DB_DRIVER=memory")
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	sellerUID := envOr("SEED_SELLER_UID", "seed-seller")
	ownerUID := envOr("SEED_OWNER_UID", "seed-instructor")

	canSeed, err := shouldSeed(ctx, gdb)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Printf("catalog already has rows; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	items := buildSeedItems(sellerUID)
	courses := buildSeedCourses(ownerUID)
	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		itemRepo := repository.NewItemRepository(tx)
		for i := range items {
			if err := itemRepo.Create(ctx, &items[i]); err != nil {
				return fmt.Errorf("insert item %q: %w", items[i].Title, err)
			}
		}
		courseRepo := repository.NewCourseRepository(tx)
		for i := range courses {
			if err := courseRepo.Create(ctx, &courses[i]); err != nil {
				return fmt.Errorf("insert course %q: %w", courses[i].Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("seeded %d items for %s and %d courses for %s", len(items), sellerUID, len(courses), ownerUID)
	return nil
}

func buildSeedItems(sellerUID string) []model.Item {
	type cat struct {
		Slug   string
		Titles []string
		Price  uint
	}
	categories := []cat{
		{Slug: "camera-photo", Price: 12800, Titles: []string{"単焦点レンズ 35mm", "カメラ用スリングバッグ", "トラベル三脚"}},
		{Slug: "books", Price: 1400, Titles: []string{"写真集 初版", "暗室技法ハンドブック"}},
		{Slug: "music", Price: 7600, Titles: []string{"コンデンサーマイク", "モニターヘッドホン"}},
		{Slug: "art-crafts", Price: 4200, Titles: []string{"水彩絵具セット", "キャンバスパネル3枚"}},
	}
	var items []model.Item
	for _, c := range categories {
		for i, t := range c.Titles {
			imageURL := fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", c.Slug, i+1)
			items = append(items, model.Item{
				SellerUID:   sellerUID,
				Title:       t,
				Description: fmt.Sprintf("%s（%s）。銀行振込のみ、入金確認後に発送します。", t, c.Slug),
				Price:       c.Price + uint((i+1)*100),
				ImageURL:    &imageURL,
				Status:      model.ItemStatusAvailable,
			})
		}
	}
	return items
}

func buildSeedCourses(ownerUID string) []model.Course {
	return []model.Course{
		{OwnerUID: ownerUID, Title: "フィルム現像 入門", Price: 12000, Published: true},
		{OwnerUID: ownerUID, Title: "ポートレート撮影 実践", Price: 18000, Published: true},
		{OwnerUID: ownerUID, Title: "モノクロプリント 上級（準備中）", Price: 24000, Published: false},
	}
}

func shouldSeed(ctx context.Context, gdb *gorm.DB) (bool, error) {
	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.Item{}).Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("count items: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	return strings.EqualFold(os.Getenv("FORCE_SEED"), "true"), nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
