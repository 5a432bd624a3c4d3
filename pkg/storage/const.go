package storage

const (
	DEFAULT_CHUNK_ROWS = 1000

	ENGINE_BADGER = "badger"
	ENGINE_PEBBLE = "pebble"

	TableNodes            = "nodes"
	TableWays             = "ways"
	TableEdges            = "edges"
	TableTurnRestrictions = "turn_restrictions"
	TableCHNodeOrder      = "ch_node_order"
	TableCHShortcuts      = "ch_shortcuts"

	metaPrefix      = "meta/"
	chGenerationKey = metaPrefix + "ch_generation"
)
