package catalog

// Schema contains the DDL for the catalog tables.
const Schema = `
CREATE TABLE IF NOT EXISTS locators (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    page_url       TEXT NOT NULL,
    full_path      TEXT NOT NULL,
    optimized_path TEXT NOT NULL,
    strategy       TEXT NOT NULL DEFAULT '',
    last_count     INTEGER NOT NULL DEFAULT 0,
    last_check     INTEGER,
    last_success   INTEGER,
    fail_count     INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_locators_page ON locators(page_url, created_at);

CREATE TABLE IF NOT EXISTS locator_checks (
    locator_id TEXT NOT NULL,
    checked_at INTEGER NOT NULL,
    count      INTEGER NOT NULL,
    ok         INTEGER NOT NULL,
    FOREIGN KEY (locator_id) REFERENCES locators(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_checks_locator ON locator_checks(locator_id, checked_at DESC);
`
