package storage

const schema = `
-- The 'collections' table stores card groups and their interval
-- policies, one column per box.
CREATE TABLE IF NOT EXISTS collections (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL, -- epoch milliseconds
    box1_days INTEGER NOT NULL,
    box2_days INTEGER NOT NULL,
    box3_days INTEGER NOT NULL,
    box4_days INTEGER NOT NULL,
    box5_days INTEGER NOT NULL
);

-- The 'cards' table stores each flashcard with its Leitner state.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    collection_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    box INTEGER NOT NULL DEFAULT 1,
    last_reviewed INTEGER, -- epoch milliseconds, NULL when never reviewed
    created_at INTEGER NOT NULL, -- epoch milliseconds

    FOREIGN KEY(collection_id) REFERENCES collections(id)
);

-- The 'reviews' table is the append-only review history.
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL,
    outcome TEXT NOT NULL, -- 'correct' or 'incorrect'
    reviewed_at INTEGER NOT NULL, -- epoch milliseconds
    from_box INTEGER NOT NULL,
    to_box INTEGER NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_collection ON cards(collection_id);
CREATE INDEX IF NOT EXISTS idx_reviews_card ON reviews(card_id);
`
