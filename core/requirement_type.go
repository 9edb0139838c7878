package core

type RequirementType uint8

const (
	Initial RequirementType = iota
	Maintenance
	Equity
)

func (rt RequirementType) String() string {
	switch rt {
	case Initial:
		return "Initial"
	case Maintenance:
		return "Maintenance"
	case Equity:
		return "Equity"
	default:
		return "Unknown"
	}
}

func (rt RequirementType) GetOraclePriceType() OraclePriceType {
	switch rt {
	case Initial, Equity:
		return TimeWeighted
	case Maintenance:
		return RealTime
	default:
		return TimeWeighted
	}
}
