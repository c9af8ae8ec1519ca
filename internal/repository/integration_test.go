//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/cloo-solutions/nutrikb/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_KnowledgeRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeRepository(pool)
	runner := NewTxRunner(pool)

	doc := &domain.Document{
		ID:        uuid.NewString(),
		Title:     "Iron in childhood",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if _, err := repos.Knowledge().AddDocument(ctx, doc); err != nil {
			return err
		}
		for i, text := range []string{"ferritin and iron stores", "vitamin d and sleep", "zinc and appetite"} {
			if err := repos.Knowledge().UpsertChunk(ctx, domain.Chunk{DocumentID: doc.ID, ChunkIndex: i, Text: text}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	pending, err := repo.ListUnembeddedChunks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i, c := range pending {
		require.NoError(t, repo.UpdateChunkEmbedding(ctx, c.DocumentID, c.ChunkIndex, vectors[i]))
	}

	n, err := repo.CountEmbeddedChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	embedded, err := repo.ListEmbeddedChunks(ctx)
	require.NoError(t, err)
	require.Len(t, embedded, 3)
	assert.Equal(t, []float32{0, 1, 0}, embedded[1].Embedding)

	hits, err := repo.NearestChunks(ctx, []float32{0, 0.9, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "vitamin d and sleep", hits[0].Chunk.Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	// mismatched dimensionality is skipped, not an error
	hits, err = repo.NearestChunks(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Empty(t, hits)

	page, err := repo.ListDocuments(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, doc.Title, page.Items[0].Title)

	ids, err := repo.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, ids)

	all, err := repo.ListChunks(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIntegration_ConsultationRepository_Records(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConsultationRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	c := domain.NewConsultation(uuid.NewString(), "Ava", "2019-04-02", "Dr Lee", now)
	require.NoError(t, repo.Create(ctx, c))

	require.NoError(t, repo.AddArtifact(ctx, &domain.Artifact{
		ID: uuid.NewString(), ConsultationID: c.ID, Kind: domain.ArtifactKindLab,
		Filename: "labs.pdf", Content: "Ferritin 12 ug/L", CreatedAt: now,
	}))

	labs, err := repo.ListArtifacts(ctx, c.ID, domain.ArtifactKindLab)
	require.NoError(t, err)
	require.Len(t, labs, 1)

	notes, err := repo.ListArtifacts(ctx, c.ID, domain.ArtifactKindNote)
	require.NoError(t, err)
	assert.Empty(t, notes)

	first, _ := json.Marshal(domain.Questions{Questions: []string{"How is sleep?"}})
	second, _ := json.Marshal(domain.Questions{Questions: []string{"Any pica?"}})
	for _, payload := range [][]byte{first, second} {
		require.NoError(t, repo.SaveRecord(ctx, &domain.Record{
			ConsultationID: c.ID, Kind: domain.RecordKindQuestions, Payload: payload, CreatedAt: time.Now().UTC(),
		}))
	}

	rec, err := repo.GetRecord(ctx, c.ID, domain.RecordKindQuestions)
	require.NoError(t, err)
	assert.JSONEq(t, string(second), string(rec.Payload))

	_, err = repo.GetRecord(ctx, c.ID, domain.RecordKindPlan)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	require.NoError(t, testutil.TruncateAll(ctx, pool))
	_, err = repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrConsultationNotFound)
}
