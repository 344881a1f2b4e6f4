package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"unicode/utf16"

	"marginalia/internal/anchor"
	"marginalia/internal/auth"
	"marginalia/internal/config"
	models "marginalia/internal/domain/models/annotation"
	annotationSvc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/highlight"
	"marginalia/internal/repository/postgres"
	postgresAnnotation "marginalia/internal/repository/postgres/annotation"
	"marginalia/internal/service/annotation"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/net/html"
)

const (
	seedCourseID = "seed-course"
	seedEmail    = "reader@marginalia.test"
	seedPassword = "marginalia-reader"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed chapters or comments")
	clearData := flag.Bool("clear-data", false, "Clear seeded chapters and comments (keep schema)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	logger, closeLog, err := config.NewLogger(cfg, "seed")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all tables...")
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := postgres.EnsureSchema(ctx, pool, tables, logger); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	if err := clearCourseData(ctx, pool, tables, seedCourseID); err != nil {
		log.Fatalf("Failed to clear data: %v", err)
	}
	if *clearData {
		log.Println("Data cleared successfully")
		return
	}

	userID := seedUserID(ctx, cfg)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	sanitizer := annotation.NewHTMLSanitizer()
	commentService := annotation.NewCommentService(
		postgresAnnotation.NewCommentRepository(repoConfig),
		postgres.NewTransactionManager(pool, logger),
		logger,
	)
	chapterService := annotation.NewChapterService(postgresAnnotation.NewChapterRepository(repoConfig), sanitizer, logger)

	styles, err := config.LoadHighlightStyles(cfg.HighlightStylesFile)
	if err != nil {
		log.Fatalf("Failed to load highlight styles: %v", err)
	}
	codec := anchor.NewCodec(logger, anchor.CodecOptions{ContextWindow: cfg.ContextWindow, FuzzyRelocation: cfg.FuzzyRelocation})

	session := annotation.NewSession(userID, annotation.SessionDeps{
		Comments:  commentService,
		Chapters:  chapterService,
		Codec:     codec,
		Engine:    highlight.NewEngine(styles, logger),
		Sanitizer: sanitizer,
		Logger:    logger,
	})

	for i, ch := range seedChapters() {
		scope := models.Scope{CourseID: seedCourseID, ChapterIndex: i}
		chapter, err := chapterService.PutChapter(ctx, &annotationSvc.PutChapterRequest{
			Scope:   scope,
			Title:   ch.title,
			Content: ch.content,
		})
		if err != nil {
			log.Fatalf("Failed to store chapter %d: %v", i, err)
		}

		root, err := anchor.ParseContainer(sanitizer.Sanitize(chapter.Content))
		if err != nil {
			log.Fatalf("Failed to parse chapter %d: %v", i, err)
		}

		for _, c := range ch.comments {
			r, ok := findPhrase(root, c.phrase)
			if !ok {
				log.Printf("Phrase %q not found in chapter %d, skipping", c.phrase, i)
				continue
			}
			pos, err := codec.Encode(root, r)
			if err != nil {
				log.Printf("Failed to encode %q: %v", c.phrase, err)
				continue
			}
			if _, err := commentService.CreateComment(ctx, &annotationSvc.CreateCommentRequest{
				Scope:        scope,
				UserID:       userID,
				CommentText:  c.text,
				SelectedText: r.String(),
				Position:     pos,
			}); err != nil {
				log.Printf("Failed to create comment on %q: %v", c.phrase, err)
			}
		}

		// Open the chapter the way a reader would to confirm every highlight restores
		report, err := session.Open(ctx, scope)
		if err != nil {
			log.Fatalf("Failed to open chapter %d: %v", i, err)
		}
		log.Printf("Chapter %d %q: %d highlights restored, %d skipped",
			i, ch.title, len(report.Restored), len(report.Skipped))
	}

	log.Println("Seeding complete!")
}

// seedUserID returns the Supabase user for the seed reader, or the dev user
// when no service key is configured.
func seedUserID(ctx context.Context, cfg *config.Config) string {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		if cfg.DevUserID == "" {
			log.Fatal("DEV_USER_ID is required when SUPABASE_URL or SUPABASE_KEY is not set")
		}
		return cfg.DevUserID
	}

	admin := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey)
	userID, err := admin.EnsureUser(ctx, seedEmail, seedPassword)
	if err != nil {
		log.Fatalf("Failed to ensure seed user: %v", err)
	}
	log.Printf("Seed user %s (ID: %s)", seedEmail, userID)
	return userID
}

// clearCourseData deletes the seed course's comments and chapters
func clearCourseData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, courseID string) error {
	if _, err := pool.Exec(ctx, "DELETE FROM "+tables.Comments+" WHERE course_id = $1", courseID); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "DELETE FROM "+tables.Chapters+" WHERE course_id = $1", courseID); err != nil {
		return err
	}
	return nil
}

// findPhrase returns the range of the first occurrence of phrase inside a
// single text node.
func findPhrase(root *html.Node, phrase string) (anchor.Range, bool) {
	var found anchor.Range
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.TextNode {
			if i := strings.Index(n.Data, phrase); i >= 0 {
				start := utf16Len(n.Data[:i])
				found = anchor.Range{
					StartContainer: n,
					StartOffset:    start,
					EndContainer:   n,
					EndOffset:      start + utf16Len(phrase),
				}
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return found, walk(root)
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

type seedComment struct {
	phrase string
	text   string
}

type seedChapter struct {
	title    string
	content  string
	comments []seedComment
}

func seedChapters() []seedChapter {
	return []seedChapter{
		{
			title: "The Beginning",
			content: `<h1>The Beginning</h1>
<p>The morning sun cast long shadows across the cobblestone streets of Eldergrove. <strong>Aria</strong> stood at the window of her small apartment, watching the city wake. Today was the day everything would change.</p>
<p>She had received the letter three days ago, an invitation to the Academy of Arcane Arts. <em>Only the most gifted are chosen</em>, the letter had said. But Aria knew the truth: she wasn't gifted at all.</p>`,
			comments: []seedComment{
				{phrase: "cast long shadows", text: "Nice establishing image."},
				{phrase: "Only the most gifted are chosen", text: "Foreshadowing? Check how this pays off in chapter 3."},
				{phrase: "she wasn't gifted at all", text: "Strong closing line for the scene."},
			},
		},
		{
			title: "The Academy",
			content: `<h1>The Academy</h1>
<p>The Academy's spires pierced the clouds, their crystalline surfaces reflecting the afternoon light in a thousand directions. Aria's breath caught as the carriage rounded the final bend.</p>
<table><tr><td>Dormitory</td><td>East Wing</td></tr><tr><td>Library</td><td>North Tower</td></tr></table>
<p>Naïve students whispered about the café beneath the library, where the professors met after dark 🌙.</p>`,
			comments: []seedComment{
				{phrase: "pierced the clouds", text: "Cliché, consider something fresher."},
				{phrase: "North Tower", text: "Keep the map consistent with chapter 1."},
				{phrase: "café beneath the library", text: "Who runs it?"},
			},
		},
	}
}
