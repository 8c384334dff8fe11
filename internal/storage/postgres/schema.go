// Package postgres provides the PostgreSQL implementation of the storage
// interfaces, for deployments that outgrow the embedded SQLite backend.
package postgres

// Schema contains the SQL statements to create the database schema.
const Schema = `
-- Entities: deduplicated records for people, organizations, projects, deals
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    name TEXT NOT NULL,

    aliases JSONB,  -- array of alternate names
    email TEXT,     -- lower-cased; high-confidence resolution key for persons
    description TEXT,
    notes TEXT,     -- user context, append-only
    metadata JSONB, -- open metadata (e.g. role)

    mention_count INTEGER NOT NULL DEFAULT 0,
    is_important BOOLEAN NOT NULL DEFAULT FALSE,

    first_seen_at TIMESTAMP NOT NULL,
    last_seen_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_name_lower ON entities(LOWER(name));
CREATE INDEX IF NOT EXISTS idx_entities_email_lower ON entities(LOWER(email));
CREATE INDEX IF NOT EXISTS idx_entities_mention_count ON entities(mention_count DESC);
CREATE INDEX IF NOT EXISTS idx_entities_last_seen ON entities(last_seen_at DESC);

-- Relationships: directed, typed, confidence-scored edges
CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    type TEXT NOT NULL,

    confidence REAL NOT NULL DEFAULT 1.0,
    metadata JSONB,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE,

    UNIQUE(source_id, target_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);

-- Mentions: provenance records linking entities to source records
CREATE TABLE IF NOT EXISTS entity_mentions (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    source_type TEXT NOT NULL,
    source_id TEXT NOT NULL,

    context TEXT,
    confidence REAL NOT NULL DEFAULT 1.0,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE,

    UNIQUE(entity_id, source_type, source_id)
);

CREATE INDEX IF NOT EXISTS idx_mentions_entity ON entity_mentions(entity_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_mentions_source ON entity_mentions(source_type, source_id);

-- Processing log: which source records have already been scanned
CREATE TABLE IF NOT EXISTS processing_log (
    source_type TEXT NOT NULL,
    source_id TEXT NOT NULL,

    entities_found INTEGER NOT NULL DEFAULT 0,
    relationships_found INTEGER NOT NULL DEFAULT 0,
    error TEXT,

    processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (source_type, source_id)
);

-- Source catalog: ids of ingested source records, written by the ingestion
-- subsystem. The graph core only reads from it, in recency order.
CREATE TABLE IF NOT EXISTS source_records (
    source_type TEXT NOT NULL,
    source_id TEXT NOT NULL,
    received_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (source_type, source_id)
);

CREATE INDEX IF NOT EXISTS idx_source_records_recency ON source_records(source_type, received_at DESC);
`
