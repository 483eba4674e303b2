package db

import (
	"encoding/json"
	"time"
)

// Feed maps cluster_data.feeds.
type Feed struct {
	FeedID      int64     `gorm:"column:feed_id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;type:text;not null"`
	URL         string    `gorm:"column:url;type:text;not null"`
	Credibility int       `gorm:"column:credibility;type:integer;not null;default:50"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Feed) TableName() string { return "cluster_data.feeds" }

// Article maps cluster_data.articles. Rows are written upstream by the
// scraping/tagging pipeline; this service only reads them.
type Article struct {
	ArticleID         int64           `gorm:"column:article_id;primaryKey;autoIncrement"`
	FeedID            int64           `gorm:"column:feed_id;type:bigint;not null;index"`
	Title             string          `gorm:"column:title;type:text;not null"`
	Content           string          `gorm:"column:content;type:text;not null;default:''"`
	PublishedAt       time.Time       `gorm:"column:published_at;type:timestamptz;not null;index"`
	ExtractedEntities json.RawMessage `gorm:"column:extracted_entities;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "cluster_data.articles" }

// Entity maps cluster_data.entities, the importance-weight reference table.
type Entity struct {
	EntityID         int64     `gorm:"column:entity_id;primaryKey;autoIncrement"`
	Name             string    `gorm:"column:name;type:text;not null;uniqueIndex:idx_entities_name_category"`
	Category         string    `gorm:"column:category;type:text;not null;uniqueIndex:idx_entities_name_category"`
	ImportanceWeight int       `gorm:"column:importance_weight;type:integer;not null;default:50"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Entity) TableName() string { return "cluster_data.entities" }

// Cluster maps cluster_data.clusters. is_active is cleared by a downstream
// maintenance job once a cluster has no members; this service only reads it.
type Cluster struct {
	ClusterID      int64     `gorm:"column:cluster_id;primaryKey;autoIncrement"`
	ClusterUUID    string    `gorm:"column:cluster_uuid;type:uuid;not null;unique"`
	Name           string    `gorm:"column:name;type:text;not null"`
	Summary        string    `gorm:"column:summary;type:text;not null;default:''"`
	CoherenceScore float64   `gorm:"column:coherence_score;type:double precision;not null"`
	IsActive       bool      `gorm:"column:is_active;type:boolean;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Cluster) TableName() string { return "cluster_data.clusters" }

// ClusterArticle maps cluster_data.cluster_articles. The (cluster_id,
// article_id) pair is unique; inserts conflict-no-op so membership writes are
// idempotent.
type ClusterArticle struct {
	ClusterArticleID int64     `gorm:"column:cluster_article_id;primaryKey;autoIncrement"`
	ClusterID        int64     `gorm:"column:cluster_id;type:bigint;not null;uniqueIndex:idx_cluster_articles_pair"`
	ArticleID        int64     `gorm:"column:article_id;type:bigint;not null;uniqueIndex:idx_cluster_articles_pair"`
	IsPrimary        bool      `gorm:"column:is_primary;type:boolean;not null;default:false"`
	SimilarityScore  float64   `gorm:"column:similarity_score;type:double precision;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ClusterArticle) TableName() string { return "cluster_data.cluster_articles" }
