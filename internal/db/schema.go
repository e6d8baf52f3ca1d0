package db

// schemaSQL contains the schema initialization SQL. The single %d verb is
// the embedding dimension of the HNSW index and must match the configured
// embedder.
const schemaSQL = `
    -- ==========================================================================
    -- NODE TABLES
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user SCHEMAFULL;

    DEFINE TABLE IF NOT EXISTS session SCHEMAFULL;

    DEFINE TABLE IF NOT EXISTS question SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS text ON question TYPE string;
    DEFINE FIELD IF NOT EXISTS timestamp ON question TYPE datetime;
    -- Set once, when the answer is attached; encodes the combined Q+A text
    DEFINE FIELD IF NOT EXISTS embedding ON question TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS is_summarized ON question TYPE bool DEFAULT false;
    DEFINE INDEX IF NOT EXISTS question_timestamp ON question FIELDS timestamp;
    DEFINE INDEX IF NOT EXISTS question_embedding ON question FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;

    DEFINE TABLE IF NOT EXISTS answer SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS text ON answer TYPE string;
    DEFINE FIELD IF NOT EXISTS timestamp ON answer TYPE datetime;
    DEFINE FIELD IF NOT EXISTS is_summarized ON answer TYPE bool DEFAULT false;

    DEFINE TABLE IF NOT EXISTS summary SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON summary TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS updated ON summary TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- RELATION TABLES
    -- ==========================================================================
    -- user -> session ownership; unique_key dedupes repeated RELATE calls
    DEFINE TABLE IF NOT EXISTS owns TYPE RELATION IN user OUT session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS unique_key ON owns VALUE <string>string::concat(<string>in, "->", <string>out);
    DEFINE INDEX IF NOT EXISTS owns_unique ON owns FIELDS unique_key UNIQUE;

    -- session -> question membership, one edge per appended question
    DEFINE TABLE IF NOT EXISTS asked TYPE RELATION IN session OUT question SCHEMAFULL;

    -- question -> question successor chain; unique on "in" keeps it a simple path
    DEFINE TABLE IF NOT EXISTS next TYPE RELATION IN question OUT question SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS next_single_successor ON next FIELDS in UNIQUE;

    -- session -> question tail pointer; unique on "in" means one tail per session
    DEFINE TABLE IF NOT EXISTS last_turn TYPE RELATION IN session OUT question SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS last_turn_single ON last_turn FIELDS in UNIQUE;

    -- question -> answer, at most one
    DEFINE TABLE IF NOT EXISTS answered TYPE RELATION IN question OUT answer SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS answered_single ON answered FIELDS in UNIQUE;

    -- user -> summary singleton
    DEFINE TABLE IF NOT EXISTS has_summary TYPE RELATION IN user OUT summary SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS has_summary_single ON has_summary FIELDS in UNIQUE;
`
