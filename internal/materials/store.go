package materials

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

var (
	// ErrNoContent indicates a material with no chunkable text.
	ErrNoContent = errors.New("material has no content")

	// ErrEmptyQuery indicates an empty search query.
	ErrEmptyQuery = errors.New("query is required")

	// ErrLectureNotFound indicates no materials exist for the lecture.
	ErrLectureNotFound = errors.New("lecture not found")
)

// Config holds store configuration.
type Config struct {
	// Path is the persistence directory. Empty means in-memory only.
	Path string

	// Collection is the chromem collection name.
	Collection string

	// ChunkSize and ChunkOverlap control material chunking.
	ChunkSize    int
	ChunkOverlap int
}

// Material is a single lecture material to ingest.
type Material struct {
	ID           string `json:"materialId"`
	LectureID    string `json:"lectureId"`
	LectureTitle string `json:"lectureTitle"`
	Title        string `json:"title"`
	Content      string `json:"content"`
}

// IngestResult reports the outcome of ingesting one material.
type IngestResult struct {
	MaterialID string `json:"materialId"`
	Chunks     int    `json:"chunksCreated"`
}

// SearchResult is one chunk matched by a semantic search.
type SearchResult struct {
	MaterialID    string  `json:"materialId"`
	MaterialTitle string  `json:"materialTitle"`
	ChunkIndex    int     `json:"chunkIndex"`
	Content       string  `json:"content"`
	Similarity    float32 `json:"similarity"`
}

// MaterialStatus summarizes an ingested material.
type MaterialStatus struct {
	MaterialID string    `json:"materialId"`
	Title      string    `json:"materialTitle"`
	Chunks     int       `json:"chunksCount"`
	IngestedAt time.Time `json:"ingestedAt"`
}

type materialRecord struct {
	Material
	chunks     int
	ingestedAt time.Time
}

type lectureRecord struct {
	title     string
	materials []*materialRecord
}

// Store holds lecture materials as embedded chunks in a chromem collection
// and keeps the raw material text for chat-context assembly.
type Store struct {
	config     Config
	collection *chromem.Collection
	logger     *zap.Logger

	mu       sync.RWMutex
	lectures map[string]*lectureRecord
}

// NewStore opens (or creates) the chunk collection. A non-empty Path makes
// chunk storage persistent across restarts; the raw material index is
// in-memory either way.
func NewStore(config Config, embedFunc chromem.EmbeddingFunc, logger *zap.Logger) (*Store, error) {
	if config.Collection == "" {
		return nil, errors.New("collection name required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if config.Path != "" {
		db, err = chromem.NewPersistentDB(config.Path, true)
		if err != nil {
			return nil, fmt.Errorf("opening persistent store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", config.Collection, err)
	}

	return &Store{
		config:     config,
		collection: collection,
		logger:     logger,
		lectures:   make(map[string]*lectureRecord),
	}, nil
}

// Ingest chunks a material, embeds the chunks, and records the material for
// chat-context lookups. A material with an empty ID gets one assigned.
func (s *Store) Ingest(ctx context.Context, m Material) (IngestResult, error) {
	if strings.TrimSpace(m.Content) == "" {
		return IngestResult{}, ErrNoContent
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	chunks := ChunkText(m.Content, s.config.ChunkSize, s.config.ChunkOverlap)
	if len(chunks) == 0 {
		return IngestResult{}, ErrNoContent
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s:%d", m.ID, i),
			Content: chunk.Content,
			Metadata: map[string]string{
				"lectureId":     m.LectureID,
				"materialId":    m.ID,
				"materialTitle": m.Title,
				"chunkIndex":    strconv.Itoa(i),
			},
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return IngestResult{}, fmt.Errorf("embedding material %s: %w", m.ID, err)
	}

	s.mu.Lock()
	lecture, ok := s.lectures[m.LectureID]
	if !ok {
		lecture = &lectureRecord{}
		s.lectures[m.LectureID] = lecture
	}
	if m.LectureTitle != "" {
		lecture.title = m.LectureTitle
	}
	lecture.materials = append(lecture.materials, &materialRecord{
		Material:   m,
		chunks:     len(chunks),
		ingestedAt: time.Now().UTC(),
	})
	s.mu.Unlock()

	s.logger.Info("material ingested",
		zap.String("lecture_id", m.LectureID),
		zap.String("material_id", m.ID),
		zap.Int("chunks", len(chunks)))

	ingestsTotal.Inc()
	chunksIngested.Add(float64(len(chunks)))

	return IngestResult{MaterialID: m.ID, Chunks: len(chunks)}, nil
}

// Search runs a semantic query over a lecture's chunks and returns matches
// at or above minSimilarity, most similar first.
func (s *Store) Search(ctx context.Context, lectureID, query string, limit int, minSimilarity float32) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}

	total := s.collection.Count()
	if total == 0 {
		return nil, nil
	}
	if limit > total {
		limit = total
	}

	where := map[string]string{"lectureId": lectureID}
	matches, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	searchesTotal.Inc()

	results := make([]SearchResult, 0, len(matches))
	for _, match := range matches {
		if match.Similarity < minSimilarity {
			continue
		}
		index, _ := strconv.Atoi(match.Metadata["chunkIndex"])
		results = append(results, SearchResult{
			MaterialID:    match.Metadata["materialId"],
			MaterialTitle: match.Metadata["materialTitle"],
			ChunkIndex:    index,
			Content:       match.Content,
			Similarity:    match.Similarity,
		})
	}
	return results, nil
}

// Lecture returns the lecture title and its raw materials for chat-context
// assembly. ErrLectureNotFound when nothing has been ingested for it.
func (s *Store) Lecture(lectureID string) (string, []Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lecture, ok := s.lectures[lectureID]
	if !ok {
		return "", nil, ErrLectureNotFound
	}

	mats := make([]Material, 0, len(lecture.materials))
	for _, rec := range lecture.materials {
		mats = append(mats, rec.Material)
	}
	return lecture.title, mats, nil
}

// Statuses returns ingest summaries for a lecture's materials.
func (s *Store) Statuses(lectureID string) ([]MaterialStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lecture, ok := s.lectures[lectureID]
	if !ok {
		return nil, ErrLectureNotFound
	}

	statuses := make([]MaterialStatus, 0, len(lecture.materials))
	for _, rec := range lecture.materials {
		statuses = append(statuses, MaterialStatus{
			MaterialID: rec.ID,
			Title:      rec.Title,
			Chunks:     rec.chunks,
			IngestedAt: rec.ingestedAt,
		})
	}
	return statuses, nil
}
