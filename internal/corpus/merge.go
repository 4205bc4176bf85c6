package corpus

import (
	"slices"
)

// MergeResult is the updated corpus plus what happened to the batch.
type MergeResult struct {
	Corpus []Article

	Fetched         int // rows in the batch
	Malformed       int // rows dropped for missing identity fields
	KnownDuplicates int // batch rows whose news_id was already stored
	BatchDuplicates int // repeated news_id within the batch
	NearDuplicates  int // rows collapsed by article_key
	Added           int // batch rows present in the result
}

// Merge folds batch into existing and returns the deduplicated corpus.
//
// Batch rows always get fresh identities; existing rows keep theirs unless
// empty. Rows whose news_id is already known are dropped, the rest are
// deduplicated by news_id in input order, appended after existing, and the
// combined set is deduplicated by article_key. For each article_key the
// first row is kept. When it has no sentiment and a later duplicate does,
// the first row takes that sentiment; its identity and position never
// change, so news_ids already in the corpus stay there.
//
// Neither input slice is modified. Merging the same batch again yields the
// same corpus.
func Merge(existing, batch []Article) *MergeResult {
	r := &MergeResult{Fetched: len(batch)}
	if len(batch) == 0 {
		r.Corpus = slices.Clone(existing)
		return r
	}

	known := make(map[string]struct{}, len(existing))
	base := make([]Article, 0, len(existing))
	for _, a := range existing {
		if a.NewsID == "" || a.ArticleKey == "" {
			id, err := Identify(a)
			if err != nil {
				r.Malformed++
				continue
			}
			a.NewsID, a.ArticleKey = id.NewsID, id.ArticleKey
		}
		if _, dup := known[a.NewsID]; dup {
			continue
		}
		known[a.NewsID] = struct{}{}
		base = append(base, a)
	}

	seen := make(map[string]struct{}, len(batch))
	var fresh []Article
	for _, a := range batch {
		id, err := Identify(a)
		if err != nil {
			r.Malformed++
			continue
		}
		a.Ticker = NormalizeTicker(a.Ticker)
		a.PublishedAt = NormalizeTime(a.PublishedAt)
		a.NewsID, a.ArticleKey = id.NewsID, id.ArticleKey

		if _, ok := known[a.NewsID]; ok {
			r.KnownDuplicates++
			continue
		}
		if _, ok := seen[a.NewsID]; ok {
			r.BatchDuplicates++
			continue
		}
		seen[a.NewsID] = struct{}{}
		fresh = append(fresh, a)
	}

	if len(fresh) == 0 {
		r.Corpus = base
		return r
	}

	combined := append(base, fresh...)
	fromBatch := func(i int) bool { return i >= len(base) }

	out := make([]Article, 0, len(combined))
	origin := make([]bool, 0, len(combined))
	byKey := make(map[string]int, len(combined))
	for i, a := range combined {
		pos, ok := byKey[a.ArticleKey]
		if !ok {
			byKey[a.ArticleKey] = len(out)
			out = append(out, a)
			origin = append(origin, fromBatch(i))
			continue
		}
		r.NearDuplicates++
		if !out[pos].HasSentiment() && a.HasSentiment() {
			s := *a.Sentiment
			out[pos].Sentiment = &s
		}
	}

	for _, isNew := range origin {
		if isNew {
			r.Added++
		}
	}
	r.Corpus = out
	return r
}
