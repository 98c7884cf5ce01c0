package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"form-consent/models"
)

const maxUploadMemory = 32 << 20

// FormDocument is the storable form of a submission.
type FormDocument struct {
	// Data holds the body fields merged with signed file pointers.
	Data map[string]any
	// Parameters holds the raw body fields as received.
	Parameters map[string][]string
	// Files lists the uploads stored while transforming.
	Files []*models.StoredFile
}

// FormRequestTransformer turns submitted requests into FormDocuments.
type FormRequestTransformer struct {
	Hash    *HashService
	Storage *FileStorage
}

func NewFormRequestTransformer(hash *HashService, storage *FileStorage) *FormRequestTransformer {
	return &FormRequestTransformer{Hash: hash, Storage: storage}
}

// Transform parses the request body and replaces every uploaded file with a
// signed pointer to its stored copy. Uploaded files overrule body fields of
// the same name. Fields are applied shallowest first, so "a[b]" wins over a
// plain "a". On error no upload is left behind.
func (t *FormRequestTransformer) Transform(ctx context.Context, r *http.Request) (FormDocument, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return FormDocument{}, fmt.Errorf("parse multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return FormDocument{}, fmt.Errorf("parse form: %w", err)
	}

	doc := FormDocument{
		Data:       map[string]any{},
		Parameters: map[string][]string{},
	}
	for _, key := range fieldNames(r.PostForm) {
		values := r.PostForm[key]
		doc.Parameters[key] = append([]string(nil), values...)
		setPath(doc.Data, splitFieldName(key), fieldValue(key, values))
	}

	if r.MultipartForm == nil {
		return doc, nil
	}

	uploads := map[string]any{}
	for _, key := range fieldNames(r.MultipartForm.File) {
		value, err := t.transformUploads(ctx, &doc, key, r.MultipartForm.File[key])
		if err != nil {
			t.Discard(ctx, doc.Files)
			return FormDocument{}, err
		}
		setPath(uploads, splitFieldName(key), value)
	}
	mergeRecursiveWithOverrule(doc.Data, uploads)
	return doc, nil
}

// Discard removes uploads stored by Transform for a submission that was not
// kept. It returns the first error but tries every file.
func (t *FormRequestTransformer) Discard(ctx context.Context, files []*models.StoredFile) error {
	var first error
	for _, f := range files {
		if err := t.Storage.Remove(context.WithoutCancel(ctx), f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *FormRequestTransformer) transformUploads(ctx context.Context, doc *FormDocument, key string, headers []*multipart.FileHeader) (any, error) {
	pointers := make([]any, 0, len(headers))
	for _, fh := range headers {
		f, err := t.Storage.Save(ctx, fh)
		if err != nil {
			return nil, fmt.Errorf("store upload %q: %w", key, err)
		}
		doc.Files = append(doc.Files, f)
		pointers = append(pointers, map[string]any{
			"submittedFile": map[string]any{
				"resourcePointer": t.Hash.FilePointer(f.ID),
			},
		})
	}
	if len(pointers) == 1 && !strings.HasSuffix(key, "[]") {
		return pointers[0], nil
	}
	return pointers, nil
}

func fieldValue(key string, values []string) any {
	if len(values) == 1 && !strings.HasSuffix(key, "[]") {
		return values[0]
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// fieldNames returns the keys of a form in the order they are applied:
// by nesting depth, then by name.
func fieldNames[V any](form map[string]V) []string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := len(splitFieldName(keys[i])), len(splitFieldName(keys[j]))
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// splitFieldName expands bracket notation: "a[b][c]" -> [a b c].
// A trailing "[]" is dropped; the value becomes a list instead.
func splitFieldName(name string) []string {
	name = strings.TrimSuffix(name, "[]")
	head, rest, found := strings.Cut(name, "[")
	if !found {
		return []string{name}
	}

	path := []string{head}
	for _, part := range strings.Split(strings.TrimSuffix(rest, "]"), "][") {
		if part != "" {
			path = append(path, part)
		}
	}
	return path
}

func setPath(doc map[string]any, path []string, value any) {
	cur := doc
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}

	last := path[len(path)-1]
	if existing, ok := cur[last].(map[string]any); ok {
		if incoming, ok := value.(map[string]any); ok {
			mergeRecursiveWithOverrule(existing, incoming)
			return
		}
	}
	cur[last] = value
}

// mergeRecursiveWithOverrule merges src into dst; values of src win unless
// both sides hold nested documents, which are merged in turn.
func mergeRecursiveWithOverrule(dst, src map[string]any) {
	for key, sv := range src {
		dm, dok := dst[key].(map[string]any)
		sm, sok := sv.(map[string]any)
		if dok && sok {
			mergeRecursiveWithOverrule(dm, sm)
			continue
		}
		dst[key] = sv
	}
}
