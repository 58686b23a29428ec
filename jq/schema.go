// Copyright 2026 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jq

import "github.com/stockparfait/errors"

// Plan is the J-Quants subscription tier. Some endpoints return additional
// columns on the higher tiers.
type Plan uint8

const (
	PlanLight Plan = iota
	PlanStandard
	PlanPremium
)

var str2plan = map[string]Plan{
	"light":    PlanLight,
	"standard": PlanStandard,
	"premium":  PlanPremium,
}

// PlanFromString parses a subscription plan name.
func PlanFromString(s string) (Plan, error) {
	p, ok := str2plan[s]
	if !ok {
		return PlanLight, errors.Reason(
			"unknown plan '%s'; expected light, standard or premium", s)
	}
	return p, nil
}

// ColumnType is the target type of a normalized column.
type ColumnType uint8

const (
	ColString ColumnType = iota
	ColInt
	ColFloat
	ColDate
)

// Column is a single named, typed column of an endpoint's schema. MinPlan
// gates columns available only on the higher subscription tiers; the zero
// value means the column is always present.
type Column struct {
	Name    string
	Type    ColumnType
	MinPlan Plan
}

// Schema is an ordered list of columns, as produced for a concrete plan.
type Schema []Column

// Equal tests two schemas for exact equality, including the column ordering.
func (s Schema) Equal(s2 Schema) bool {
	if len(s) != len(s2) {
		return false
	}
	for i, c := range s {
		if c != s2[i] {
			return false
		}
	}
	return true
}

// MapColumns creates a map of {column name -> column index} in the schema.
func (s Schema) MapColumns() map[string]int {
	res := make(map[string]int)
	for i, c := range s {
		res[c.Name] = i
	}
	return res
}

// DateParam is the kind of date query parameter an endpoint accepts.
type DateParam uint8

const (
	DateParamNone   DateParam = iota // no date parameter (fins/announcement)
	DateParamDate                    // a single date=YYYYMMDD per unit
	DateParamFromTo                  // from/to covering the whole window
)

// Step is the date-unit granularity of a range fetch.
type Step uint8

const (
	StepDaily Step = iota
	// StepWeeklyMonday fetches Mondays only. Listing data changes slowly, so
	// a weekly snapshot is sufficient.
	StepWeeklyMonday
)

// EndpointID identifies a data endpoint; the value is its URL path.
type EndpointID string

const (
	ListedInfo           = EndpointID("listed/info")
	DailyQuotes          = EndpointID("prices/daily_quotes")
	Statements           = EndpointID("fins/statements")
	Announcement         = EndpointID("fins/announcement")
	Dividend             = EndpointID("fins/dividend")
	IndexOption          = EndpointID("option/index_option")
	TradesSpec           = EndpointID("markets/trades_spec")
	WeeklyMarginInterest = EndpointID("markets/weekly_margin_interest")
	ShortSelling         = EndpointID("markets/short_selling")
	Breakdown            = EndpointID("markets/breakdown")
	Topix                = EndpointID("indices/topix")
)

// Endpoint is the static configuration of one data endpoint: where to fetch,
// which response field carries the records, the declared column schema, and
// how the merge pipeline keys and sorts its rows.
type Endpoint struct {
	ID         EndpointID
	ResultKey  string    // response field holding the records, on every page
	DateParam  DateParam //
	Step       Step      //
	Columns    []Column  // full declared schema, plan gating included
	SortKey    []string  // ascending sort of normalized rows
	Key        []string  // business key for deduplication on merge
	DateColumn string    // drives the incremental watermark and partitioning
}

// Path returns the URL path of the endpoint relative to the base URL.
func (e *Endpoint) Path() string { return "/" + string(e.ID) }

// Schema returns the ordered column schema for the given plan.
func (e *Endpoint) Schema(plan Plan) Schema {
	s := Schema{}
	for _, c := range e.Columns {
		if plan >= c.MinPlan {
			s = append(s, c)
		}
	}
	return s
}

// Lookup finds an endpoint by its ID.
func Lookup(id EndpointID) (*Endpoint, error) {
	e, ok := endpoints[id]
	if !ok {
		return nil, errors.Reason("unknown endpoint '%s'", id)
	}
	return e, nil
}

func flt(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: ColFloat}
	}
	return cols
}

func str(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: ColString}
	}
	return cols
}

func cat(groups ...[]Column) []Column {
	cols := []Column{}
	for _, g := range groups {
		cols = append(cols, g...)
	}
	return cols
}

var endpoints = map[EndpointID]*Endpoint{
	ListedInfo: {
		ID:        ListedInfo,
		ResultKey: "info",
		DateParam: DateParamDate,
		Step:      StepWeeklyMonday,
		Columns: []Column{
			{Name: "Date", Type: ColDate},
			{Name: "Code", Type: ColString},
			{Name: "CompanyNameEnglish", Type: ColString},
			{Name: "Sector17Code", Type: ColString},
			{Name: "Sector33Code", Type: ColString},
			{Name: "ScaleCategory", Type: ColString},
			{Name: "MarketCode", Type: ColString},
			{Name: "MarketCodeName", Type: ColString},
			{Name: "MarginCode", Type: ColString, MinPlan: PlanStandard},
			{Name: "MarginCodeName", Type: ColString, MinPlan: PlanStandard},
		},
		SortKey:    []string{"Date", "Code"},
		Key:        []string{"Code", "Date"},
		DateColumn: "Date",
	},
	DailyQuotes: {
		ID:        DailyQuotes,
		ResultKey: "daily_quotes",
		DateParam: DateParamDate,
		Step:      StepDaily,
		Columns: cat(
			[]Column{
				{Name: "Date", Type: ColDate},
				{Name: "Code", Type: ColString},
			},
			flt("Open", "High", "Low", "Close", "UpperLimit", "LowerLimit",
				"Volume", "TurnoverValue", "AdjustmentFactor", "AdjustmentOpen",
				"AdjustmentHigh", "AdjustmentLow", "AdjustmentClose",
				"AdjustmentVolume"),
			premium(flt("MorningOpen", "MorningHigh", "MorningLow", "MorningClose",
				"MorningUpperLimit", "MorningLowerLimit", "MorningVolume",
				"MorningTurnoverValue", "MorningAdjustmentOpen",
				"MorningAdjustmentHigh", "MorningAdjustmentLow",
				"MorningAdjustmentClose", "MorningAdjustmentVolume",
				"AfternoonOpen", "AfternoonHigh", "AfternoonLow", "AfternoonClose",
				"AfternoonUpperLimit", "AfternoonLowerLimit", "AfternoonVolume",
				"AfternoonAdjustmentOpen", "AfternoonAdjustmentHigh",
				"AfternoonAdjustmentLow", "AfternoonAdjustmentClose",
				"AfternoonAdjustmentVolume")),
		),
		SortKey:    []string{"Date", "Code"},
		Key:        []string{"Code", "Date"},
		DateColumn: "Date",
	},
	Statements: {
		ID:        Statements,
		ResultKey: "statements",
		DateParam: DateParamDate,
		Step:      StepDaily,
		Columns: cat(
			[]Column{
				{Name: "DisclosedDate", Type: ColDate},
				{Name: "DisclosedTime", Type: ColString},
				{Name: "LocalCode", Type: ColString},
				{Name: "DisclosureNumber", Type: ColFloat},
				{Name: "TypeOfDocument", Type: ColString},
				{Name: "TypeOfCurrentPeriod", Type: ColString},
				{Name: "CurrentPeriodStartDate", Type: ColDate},
				{Name: "CurrentPeriodEndDate", Type: ColDate},
				{Name: "CurrentFiscalYearStartDate", Type: ColDate},
				{Name: "CurrentFiscalYearEndDate", Type: ColDate},
				{Name: "NextFiscalYearStartDate", Type: ColDate},
				{Name: "NextFiscalYearEndDate", Type: ColDate},
			},
			str("NetSales", "OperatingProfit", "OrdinaryProfit", "Profit",
				"EarningsPerShare", "DilutedEarningsPerShare", "TotalAssets",
				"Equity", "EquityToAssetRatio", "BookValuePerShare",
				"CashFlowsFromOperatingActivities",
				"CashFlowsFromInvestingActivities",
				"CashFlowsFromFinancingActivities", "CashAndEquivalents",
				"ResultDividendPerShare1stQuarter",
				"ResultDividendPerShare2ndQuarter",
				"ResultDividendPerShare3rdQuarter",
				"ResultDividendPerShareFiscalYearEnd",
				"ResultDividendPerShareAnnual", "DistributionsPerUnit(REIT)",
				"ResultTotalDividendPaidAnnual", "ResultPayoutRatioAnnual",
				"ForecastDividendPerShare1stQuarter",
				"ForecastDividendPerShare2ndQuarter",
				"ForecastDividendPerShare3rdQuarter",
				"ForecastDividendPerShareFiscalYearEnd",
				"ForecastDividendPerShareAnnual",
				"ForecastDistributionsPerUnit(REIT)",
				"ForecastTotalDividendPaidAnnual", "ForecastPayoutRatioAnnual",
				"NextYearForecastDividendPerShare1stQuarter",
				"NextYearForecastDividendPerShare2ndQuarter",
				"NextYearForecastDividendPerShare3rdQuarter",
				"NextYearForecastDividendPerShareFiscalYearEnd",
				"NextYearForecastDividendPerShareAnnual",
				"NextYearForecastDistributionsPerUnit(REIT)",
				"NextYearForecastPayoutRatioAnnual",
				"ForecastNetSales2ndQuarter", "ForecastOperatingProfit2ndQuarter",
				"ForecastOrdinaryProfit2ndQuarter", "ForecastProfit2ndQuarter",
				"ForecastEarningsPerShare2ndQuarter",
				"NextYearForecastNetSales2ndQuarter",
				"NextYearForecastOperatingProfit2ndQuarter",
				"NextYearForecastOrdinaryProfit2ndQuarter",
				"NextYearForecastProfit2ndQuarter",
				"NextYearForecastEarningsPerShare2ndQuarter",
				"ForecastNetSales", "ForecastOperatingProfit",
				"ForecastOrdinaryProfit", "ForecastProfit",
				"ForecastEarningsPerShare", "NextYearForecastNetSales",
				"NextYearForecastOperatingProfit", "NextYearForecastOrdinaryProfit",
				"NextYearForecastProfit", "NextYearForecastEarningsPerShare",
				"MaterialChangesInSubsidiaries",
				"ChangesBasedOnRevisionsOfAccountingStandard",
				"ChangesOtherThanOnesBasedOnRevisionsOfAccountingStandard",
				"ChangesInAccountingEstimates", "RetrospectiveRestatement",
				"NumberOfIssuedAndOutstandingSharesAtTheEndOfFiscalYearIncludingTreasuryStock",
				"NumberOfTreasuryStockAtTheEndOfFiscalYear",
				"AverageNumberOfShares", "NonConsolidatedNetSales",
				"NonConsolidatedOperatingProfit", "NonConsolidatedOrdinaryProfit",
				"NonConsolidatedProfit", "NonConsolidatedEarningsPerShare",
				"NonConsolidatedTotalAssets", "NonConsolidatedEquity",
				"NonConsolidatedEquityToAssetRatio",
				"NonConsolidatedBookValuePerShare",
				"ForecastNonConsolidatedNetSales2ndQuarter",
				"ForecastNonConsolidatedOperatingProfit2ndQuarter",
				"ForecastNonConsolidatedOrdinaryProfit2ndQuarter",
				"ForecastNonConsolidatedProfit2ndQuarter",
				"ForecastNonConsolidatedEarningsPerShare2ndQuarter",
				"NextYearForecastNonConsolidatedNetSales2ndQuarter",
				"NextYearForecastNonConsolidatedOperatingProfit2ndQuarter",
				"NextYearForecastNonConsolidatedOrdinaryProfit2ndQuarter",
				"NextYearForecastNonConsolidatedProfit2ndQuarter",
				"NextYearForecastNonConsolidatedEarningsPerShare2ndQuarter",
				"ForecastNonConsolidatedNetSales",
				"ForecastNonConsolidatedOperatingProfit",
				"ForecastNonConsolidatedOrdinaryProfit",
				"ForecastNonConsolidatedProfit",
				"ForecastNonConsolidatedEarningsPerShare",
				"NextYearForecastNonConsolidatedNetSales",
				"NextYearForecastNonConsolidatedOperatingProfit",
				"NextYearForecastNonConsolidatedOrdinaryProfit",
				"NextYearForecastNonConsolidatedProfit",
				"NextYearForecastNonConsolidatedEarningsPerShare"),
		),
		SortKey:    []string{"DisclosedDate", "DisclosedTime"},
		Key:        []string{"LocalCode", "DisclosedDate", "DisclosureNumber"},
		DateColumn: "DisclosedDate",
	},
	Announcement: {
		ID:        Announcement,
		ResultKey: "announcement",
		DateParam: DateParamNone,
		Step:      StepDaily,
		Columns: cat(
			[]Column{{Name: "Date", Type: ColDate}},
			str("Code", "CompanyName", "FiscalYear", "SectorName",
				"FiscalQuarter", "Section"),
		),
		SortKey:    []string{"Date", "Code"},
		Key:        []string{"Code", "Date"},
		DateColumn: "Date",
	},
	Dividend: {
		ID:        Dividend,
		ResultKey: "dividend",
		DateParam: DateParamDate,
		Step:      StepDaily,
		Columns: cat(
			[]Column{{Name: "AnnouncementDate", Type: ColDate}},
			str("AnnouncementTime", "Code", "ReferenceNumber", "StatusCode",
				"BoardMeetingDate", "InterimFinalCode", "ForecastResultCode",
				"InterimFinalTerm", "GrossDividendRate", "RecordDate", "ExDate",
				"ActualRecordDate", "PayableDate", "CAReferenceNumber",
				"DistributionAmount", "RetainedEarnings", "DeemedDividend",
				"DeemedCapitalGains", "NetAssetDecreaseRatio",
				"CommemorativeSpecialCode", "CommemorativeDividendRate",
				"SpecialDividendRate"),
		),
		SortKey:    []string{"AnnouncementDate", "Code"},
		Key:        []string{"Code", "AnnouncementDate", "ReferenceNumber"},
		DateColumn: "AnnouncementDate",
	},
	IndexOption: {
		ID:        IndexOption,
		ResultKey: "index_option",
		DateParam: DateParamDate,
		Step:      StepDaily,
		Columns: cat(
			[]Column{
				{Name: "Date", Type: ColDate},
				{Name: "Code", Type: ColString},
			},
			flt("WholeDayOpen", "WholeDayHigh", "WholeDayLow", "WholeDayClose",
				"NightSessionOpen", "NightSessionHigh", "NightSessionLow",
				"NightSessionClose", "DaySessionOpen", "DaySessionHigh",
				"DaySessionLow", "DaySessionClose", "Volume", "OpenInterest",
				"TurnoverValue"),
			str("ContractMonth"),
			flt("StrikePrice", "Volume(OnlyAuction)"),
			str("EmergencyMarginTriggerDivision", "PutCallDivision"),
			[]Column{
				{Name: "LastTradingDay", Type: ColDate},
				{Name: "SpecialQuotationDay", Type: ColDate},
			},
			flt("SettlementPrice", "TheoreticalPrice", "BaseVolatility",
				"UnderlyingPrice", "ImpliedVolatility", "InterestRate"),
		),
		SortKey:    []string{"Date", "Code"},
		Key:        []string{"Code", "Date"},
		DateColumn: "Date",
	},
	TradesSpec: {
		ID:        TradesSpec,
		ResultKey: "trades_spec",
		DateParam: DateParamFromTo,
		Step:      StepDaily,
		Columns: cat(
			[]Column{
				{Name: "PublishedDate", Type: ColDate},
				{Name: "StartDate", Type: ColDate},
				{Name: "EndDate", Type: ColDate},
				{Name: "Section", Type: ColString},
			},
			flt("ProprietarySales", "ProprietaryPurchases", "ProprietaryTotal",
				"ProprietaryBalance", "BrokerageSales", "BrokeragePurchases",
				"BrokerageTotal", "BrokerageBalance", "TotalSales",
				"TotalPurchases", "TotalTotal", "TotalBalance",
				"IndividualsSales", "IndividualsPurchases", "IndividualsTotal",
				"IndividualsBalance", "ForeignersSales", "ForeignersPurchases",
				"ForeignersTotal", "ForeignersBalance", "SecuritiesCosSales",
				"SecuritiesCosPurchases", "SecuritiesCosTotal",
				"SecuritiesCosBalance", "InvestmentTrustsSales",
				"InvestmentTrustsPurchases", "InvestmentTrustsTotal",
				"InvestmentTrustsBalance", "BusinessCosSales",
				"BusinessCosPurchases", "BusinessCosTotal", "BusinessCosBalance",
				"OtherCosSales", "OtherCosPurchases", "OtherCosTotal",
				"OtherCosBalance", "InsuranceCosSales", "InsuranceCosPurchases",
				"InsuranceCosTotal", "InsuranceCosBalance",
				"CityBKsRegionalBKsEtcSales", "CityBKsRegionalBKsEtcPurchases",
				"CityBKsRegionalBKsEtcTotal", "CityBKsRegionalBKsEtcBalance",
				"TrustBanksSales", "TrustBanksPurchases", "TrustBanksTotal",
				"TrustBanksBalance", "OtherFinancialInstitutionsSales",
				"OtherFinancialInstitutionsPurchases",
				"OtherFinancialInstitutionsTotal",
				"OtherFinancialInstitutionsBalance"),
		),
		SortKey:    []string{"PublishedDate", "Section"},
		Key:        []string{"Section", "PublishedDate", "StartDate"},
		DateColumn: "PublishedDate",
	},
	WeeklyMarginInterest: {
		ID:        WeeklyMarginInterest,
		ResultKey: "weekly_margin_interest",
		DateParam: DateParamDate,
		Step:      StepDaily,
		Columns: cat(
			[]Column{
				{Name: "Date", Type: ColDate},
				{Name: "Code", Type: ColString},
			},
			flt("ShortMarginTradeVolume", "LongMarginTradeVolume",
				"ShortNegotiableMarginTradeVolume",
				"LongNegotiableMarginTradeVolume",
				"ShortStandardizedMarginTradeVolume",
				"LongStandardizedMarginTradeVolume"),
			str("IssueType"),
		),
		SortKey:    []string{"Date", "Code"},
		Key:        []string{"Code", "Date"},
		DateColumn: "Date",
	},
	ShortSelling: {
		ID:        ShortSelling,
		ResultKey: "short_selling",
		DateParam: DateParamDate,
		Step:      StepDaily,
		Columns: cat(
			[]Column{
				{Name: "Date", Type: ColDate},
				{Name: "Sector33Code", Type: ColString},
			},
			flt("SellingExcludingShortSellingTurnoverValue",
				"ShortSellingWithRestrictionsTurnoverValue",
				"ShortSellingWithoutRestrictionsTurnoverValue"),
		),
		SortKey:    []string{"Date", "Sector33Code"},
		Key:        []string{"Sector33Code", "Date"},
		DateColumn: "Date",
	},
	Breakdown: {
		ID:        Breakdown,
		ResultKey: "breakdown",
		DateParam: DateParamDate,
		Step:      StepDaily,
		Columns: cat(
			[]Column{
				{Name: "Date", Type: ColDate},
				{Name: "Code", Type: ColString},
			},
			flt("LongSellValue", "ShortSellWithoutMarginValue",
				"MarginSellNewValue", "MarginSellCloseValue", "LongBuyValue",
				"MarginBuyNewValue", "MarginBuyCloseValue", "LongSellVolume",
				"ShortSellWithoutMarginVolume", "MarginSellNewVolume",
				"MarginSellCloseVolume", "LongBuyVolume", "MarginBuyNewVolume",
				"MarginBuyCloseVolume"),
		),
		SortKey:    []string{"Date", "Code"},
		Key:        []string{"Code", "Date"},
		DateColumn: "Date",
	},
	Topix: {
		ID:        Topix,
		ResultKey: "topix",
		DateParam: DateParamFromTo,
		Step:      StepDaily,
		Columns: cat(
			[]Column{{Name: "Date", Type: ColDate}},
			flt("Open", "High", "Low", "Close"),
		),
		SortKey:    []string{"Date"},
		Key:        []string{"Date"},
		DateColumn: "Date",
	},
}

func premium(cols []Column) []Column {
	for i := range cols {
		cols[i].MinPlan = PlanPremium
	}
	return cols
}
