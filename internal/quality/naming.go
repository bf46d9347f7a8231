package quality

import "fmt"

// Folder defaults, matching the parameter-set defaults.
const (
	DefaultRPCFolder        = "RPC"
	DefaultRecHitTypeFolder = "AllHits"
	DefaultSummaryFolder    = "SummaryHistograms"
)

// InputKind identifies one of the seven upstream input maps.
type InputKind int

const (
	InputHV InputKind = iota
	InputLV
	InputDead
	InputFirstBin
	InputNoisyStrips
	InputMultiplicity
	InputAsymmetry
)

// NumInputs is the number of upstream input maps per unit.
const NumInputs = 7

// InputKinds lists the input maps in the order they are consulted.
var InputKinds = [NumInputs]InputKind{
	InputHV, InputLV, InputDead, InputFirstBin, InputNoisyStrips, InputMultiplicity, InputAsymmetry,
}

var inputPrefixes = map[InputKind]string{
	InputHV:           "HVStatus_",
	InputLV:           "LVStatus_",
	InputDead:         "DeadChannelFraction_",
	InputFirstBin:     "ClusterSizeIn1Bin_",
	InputNoisyStrips:  "RPCNoisyStrips_",
	InputMultiplicity: "NumberOfDigi_Mean_",
	InputAsymmetry:    "AsymmetryLeftRight_",
}

// Naming maps histogram kinds and units to their canonical store keys.
// Downstream consumers rely on these exact strings.
type Naming struct {
	prefixDir  string
	summaryDir string
}

// NewNaming builds the naming scheme from the three folder parameters.
func NewNaming(rpcFolder, recHitTypeFolder, summaryFolder string) Naming {
	prefix := rpcFolder + "/" + recHitTypeFolder
	return Naming{
		prefixDir:  prefix,
		summaryDir: prefix + "/" + summaryFolder,
	}
}

// PrefixDir returns "RPCFolder/RecHitTypeFolder".
func (n Naming) PrefixDir() string { return n.prefixDir }

// SummaryDir returns "RPCFolder/RecHitTypeFolder/SummaryFolder".
func (n Naming) SummaryDir() string { return n.summaryDir }

// Events returns the full name of the processed-events counter.
func (n Naming) Events() string {
	return n.prefixDir + "/RPCEvents"
}

// UnitSuffix returns the map suffix shared by inputs and outputs of a unit.
func UnitSuffix(u Unit) string {
	if u.Barrel {
		return fmt.Sprintf("Roll_vs_Sector_Wheel%d", u.Index)
	}
	return fmt.Sprintf("Ring_vs_Segment_Disk%d", u.Index)
}

// RegionSummaryName is the booking name of a region's state distribution.
func RegionSummaryName(r Region) string {
	return "RPCChamberQuality_" + r.String()
}

// OverviewName is the booking name of the global overview.
const OverviewName = "RPC_System_Quality_Overview"

// MapName is the booking name of a unit's quality map.
func MapName(u Unit) string {
	return "RPCChamberQuality_" + UnitSuffix(u)
}

// DistributionName is the booking name of a unit's state distribution.
func DistributionName(u Unit) string {
	return "RPCChamberQuality_Distribution_" + u.String()
}

// RegionSummary returns the full name of a region's state distribution.
func (n Naming) RegionSummary(r Region) string {
	return n.summaryDir + "/" + RegionSummaryName(r)
}

// Overview returns the full name of the global overview.
func (n Naming) Overview() string {
	return n.summaryDir + "/" + OverviewName
}

// Map returns the full name of a unit's quality map.
func (n Naming) Map(u Unit) string {
	return n.summaryDir + "/" + MapName(u)
}

// Distribution returns the full name of a unit's state distribution.
func (n Naming) Distribution(u Unit) string {
	return n.summaryDir + "/" + DistributionName(u)
}

// Input returns the full name of an upstream input map for a unit.
func (n Naming) Input(kind InputKind, u Unit) string {
	return n.summaryDir + "/" + inputPrefixes[kind] + UnitSuffix(u)
}
