package azuresearch

// Field names of the index schema.
const (
	fieldID           = "id"
	fieldDocumentID   = "document_id"
	fieldChunkID      = "chunk_id"
	fieldText         = "text"
	fieldSource       = "source"
	fieldPath         = "path"
	fieldDocumentType = "document_type"
	fieldStartOffset  = "start_offset"
	fieldEndOffset    = "end_offset"
	fieldCreated      = "created"
	fieldModified     = "modified"
	fieldEmbedding    = "embedding"
)

// Vector search configuration names.
const (
	vectorProfile     = "vector-profile"
	hnswAlgorithm     = "hnsw-config"
	hnswM             = 4
	hnswConstruct     = 400
	hnswSearch        = 500
	hnswMetric        = "cosine"
	algorithmKindHNSW = "hnsw"
)

// selectFields lists the fields returned by search, excluding the vector.
var selectFields = fieldID + "," + fieldDocumentID + "," + fieldChunkID + "," + fieldText + "," +
	fieldSource + "," + fieldPath + "," + fieldDocumentType + "," + fieldStartOffset + "," +
	fieldEndOffset + "," + fieldCreated + "," + fieldModified

type indexDefinition struct {
	Name         string        `json:"name"`
	Fields       []fieldDef    `json:"fields"`
	VectorSearch *vectorSearch `json:"vectorSearch,omitempty"`
}

type fieldDef struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	Key                 bool   `json:"key,omitempty"`
	Searchable          bool   `json:"searchable"`
	Filterable          bool   `json:"filterable"`
	Sortable            bool   `json:"sortable"`
	Retrievable         bool   `json:"retrievable"`
	Dimensions          int    `json:"dimensions,omitempty"`
	VectorSearchProfile string `json:"vectorSearchProfile,omitempty"`
}

type vectorSearch struct {
	Profiles   []vectorProfileDef `json:"profiles"`
	Algorithms []algorithmDef     `json:"algorithms"`
}

type vectorProfileDef struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
}

type algorithmDef struct {
	Name           string         `json:"name"`
	Kind           string         `json:"kind"`
	HNSWParameters hnswParameters `json:"hnswParameters"`
}

type hnswParameters struct {
	M              int    `json:"m"`
	EFConstruction int    `json:"efConstruction"`
	EFSearch       int    `json:"efSearch"`
	Metric         string `json:"metric"`
}

// newIndexDefinition builds the schema for an index holding vectors of the
// given dimensions.
func newIndexDefinition(name string, dimensions int) indexDefinition {
	return indexDefinition{
		Name: name,
		Fields: []fieldDef{
			{Name: fieldID, Type: "Edm.String", Key: true, Filterable: true, Retrievable: true},
			{Name: fieldDocumentID, Type: "Edm.String", Filterable: true, Retrievable: true},
			{Name: fieldChunkID, Type: "Edm.Int32", Filterable: true, Sortable: true, Retrievable: true},
			{Name: fieldText, Type: "Edm.String", Searchable: true, Retrievable: true},
			{Name: fieldSource, Type: "Edm.String", Filterable: true, Retrievable: true},
			{Name: fieldPath, Type: "Edm.String", Retrievable: true},
			{Name: fieldDocumentType, Type: "Edm.String", Filterable: true, Retrievable: true},
			{Name: fieldStartOffset, Type: "Edm.Int32", Retrievable: true},
			{Name: fieldEndOffset, Type: "Edm.Int32", Retrievable: true},
			{Name: fieldCreated, Type: "Edm.DateTimeOffset", Filterable: true, Sortable: true, Retrievable: true},
			{Name: fieldModified, Type: "Edm.DateTimeOffset", Filterable: true, Sortable: true, Retrievable: true},
			{
				Name:                fieldEmbedding,
				Type:                "Collection(Edm.Single)",
				Searchable:          true,
				Retrievable:         false,
				Dimensions:          dimensions,
				VectorSearchProfile: vectorProfile,
			},
		},
		VectorSearch: &vectorSearch{
			Profiles: []vectorProfileDef{{Name: vectorProfile, Algorithm: hnswAlgorithm}},
			Algorithms: []algorithmDef{{
				Name: hnswAlgorithm,
				Kind: algorithmKindHNSW,
				HNSWParameters: hnswParameters{
					M:              hnswM,
					EFConstruction: hnswConstruct,
					EFSearch:       hnswSearch,
					Metric:         hnswMetric,
				},
			}},
		},
	}
}

// vectorDimensions returns the dimensions of the embedding field, or 0.
func (d indexDefinition) vectorDimensions() int {
	for _, f := range d.Fields {
		if f.Name == fieldEmbedding {
			return f.Dimensions
		}
	}
	return 0
}
