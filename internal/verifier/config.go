package verifier

// HasherVariant names the field-hash backend a pool was deployed with. Spec
// §6 fixes this at genesis: "changing any of them creates a new pool
// (different pool_id)". Only one variant is implemented by
// internal/hashing.FieldHasher today; the field still exists because it is
// part of the genesis fingerprint, not because a second backend is wired up.
type HasherVariant string

// HasherFieldMiMCBN254 is the only hasher variant this module implements:
// internal/hashing.FieldHasher, an MiMC sponge over the BN254 scalar field.
const HasherFieldMiMCBN254 HasherVariant = "field-mimc-bn254"

// GenesisConfig fixes the pool-wide parameters the spec's §6 "Environment
// knobs" section requires to be set once at genesis and never changed in
// place. Grounded on the teacher's flag-based Config/DefaultConfig pattern
// (internal/storage.Config, internal/mempool.Config,
// internal/nullifier.NullifierConfig).
type GenesisConfig struct {
	// Version is the transaction-format version this pool accepts (spec
	// §4.7 common check: "version matches the pool").
	Version uint8

	// TreeDepth is the fixed commitment-tree depth (spec §4.5 "depth d
	// chosen once at pool creation").
	TreeDepth int

	// HasherVariant records which field-hash backend this pool uses.
	HasherVariant HasherVariant

	// FeeCeiling is the maximum fee, in the native fee asset's minimal
	// units, a single transaction may declare (spec §4.7 fee policy check).
	// A zero ceiling means no ceiling is enforced.
	FeeCeiling uint64

	// MaxEnvelopeSize records the pool's maximum envelope size as part of
	// its genesis parameters (spec §6 "Environment knobs"). No code in this
	// module reads it: envelope sealing, opening, attachment and listing do
	// not check envelope length against it.
	MaxEnvelopeSize int
}

// DefaultGenesisConfig returns the parameters a new pool is created with if
// the operator doesn't override them.
func DefaultGenesisConfig() *GenesisConfig {
	return &GenesisConfig{
		Version:         1,
		TreeDepth:       32,
		HasherVariant:   HasherFieldMiMCBN254,
		FeeCeiling:      1_000_000,
		MaxEnvelopeSize: 4096,
	}
}
