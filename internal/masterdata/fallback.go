// internal/masterdata/fallback.go
package masterdata

import "gacp-certification/internal/wizard"

// Built-in tables served when the remote master-data API cannot answer.

var fallbackPurposes = []Purpose{
	{
		ID:           string(wizard.PurposeResearch),
		NameTH:       "เพื่อการวิจัย",
		NameEN:       "Research",
		Description:  "ปลูกเพื่อการวิจัยและพัฒนาภายใต้หน่วยงานที่ได้รับอนุญาต",
		Requirements: []string{"GACP", "RESEARCH_PROTOCOL"},
		SortOrder:    1,
	},
	{
		ID:           string(wizard.PurposeCommercial),
		NameTH:       "เพื่อจำหน่าย",
		NameEN:       "Commercial Sale",
		Description:  "ปลูกเพื่อจำหน่ายภายในประเทศตามใบอนุญาต",
		Requirements: []string{"GACP"},
		SortOrder:    2,
	},
	{
		ID:           string(wizard.PurposeExport),
		NameTH:       "เพื่อส่งออก",
		NameEN:       "Export",
		Description:  "ปลูกเพื่อส่งออกต่างประเทศ ต้องมีใบรับรอง GACP",
		Requirements: []string{"GACP_ADVANCED"},
		SortOrder:    3,
	},
}

var fallbackMethods = []Method{
	{
		ID:              string(wizard.MethodOutdoor),
		NameTH:          "ปลูกกลางแจ้ง",
		NameEN:          "Outdoor",
		Description:     "ปลูกในแปลงกลางแจ้ง อาศัยแสงแดดธรรมชาติ",
		Pros:            []string{"ต้นทุนต่ำ", "เหมาะกับพื้นที่กว้าง"},
		Cons:            []string{"ควบคุมสภาพแวดล้อมยาก", "เสี่ยงศัตรูพืช"},
		YieldMultiplier: 1.0,
		SortOrder:       1,
	},
	{
		ID:              string(wizard.MethodGreenhouse),
		NameTH:          "โรงเรือน",
		NameEN:          "Greenhouse",
		Description:     "ปลูกในโรงเรือนที่มีหลังคาโปร่งแสง",
		Pros:            []string{"ควบคุมสภาพแวดล้อมได้บางส่วน", "ปลูกได้ตลอดปี"},
		Cons:            []string{"ต้นทุนสูงกว่ากลางแจ้ง"},
		YieldMultiplier: 1.2,
		SortOrder:       2,
	},
	{
		ID:              string(wizard.MethodIndoor),
		NameTH:          "ระบบปิด",
		NameEN:          "Indoor Controlled",
		Description:     "ปลูกในอาคารปิดที่ควบคุมสภาพแวดล้อมทั้งหมด",
		Pros:            []string{"ควบคุมทุกปัจจัยได้", "คุณภาพสม่ำเสมอ"},
		Cons:            []string{"ต้นทุนสูง", "ค่าไฟฟ้าสูง"},
		YieldMultiplier: 1.5,
		SortOrder:       3,
	},
}

var fallbackLayouts = []wizard.FarmLayout{
	{ID: "row_cultivation", NameTH: "แปลงยาว", NameEN: "Row Cultivation", ApplicableTo: []string{"outdoor"}, PlantsPerSqm: 1},
	{ID: "raised_bed", NameTH: "แปลงยกร่อง", NameEN: "Raised Bed", ApplicableTo: []string{"outdoor"}, PlantsPerSqm: 4},
	{ID: "block_plot", NameTH: "แปลงบล็อก", NameEN: "Block Plot", ApplicableTo: []string{"outdoor"}, PlantsPerSqm: 1},
	{ID: "container", NameTH: "ปลูกในกระถาง", NameEN: "Container Growing", ApplicableTo: []string{"outdoor", "greenhouse"}, ManualPlantCount: true},
	{ID: "ground_rows", NameTH: "แปลงพื้น", NameEN: "Ground Rows", ApplicableTo: []string{"greenhouse"}, PlantsPerSqm: 1},
	{ID: "raised_tables", NameTH: "โต๊ะยกสูง", NameEN: "Raised Tables", ApplicableTo: []string{"greenhouse"}, PlantsPerSqm: 2},
	{ID: "hydroponic", NameTH: "ไฮโดรโปนิกส์", NameEN: "Hydroponic", ApplicableTo: []string{"greenhouse", "indoor"}, PlantsPerSqm: 4},
}

var fallbackStyles = []wizard.GrowingStyle{
	{ID: "traditional", NameTH: "แบบดั้งเดิม", NameEN: "Traditional", ApplicableTo: []string{"indoor"}, PlantsPerSqm: 2},
	{ID: "sog", NameTH: "Sea of Green (SOG)", NameEN: "SOG", ApplicableTo: []string{"indoor"}, PlantsPerSqm: 12},
	{ID: "scrog", NameTH: "Screen of Green (ScrOG)", NameEN: "ScrOG", ApplicableTo: []string{"indoor"}, PlantsPerSqm: 2},
	{ID: "vertical", NameTH: "ชั้นวางแนวตั้ง", NameEN: "Vertical Rack", ApplicableTo: []string{"indoor"}, PlantsPerSqm: 6, SupportsMultipleTiers: true, MaxTiers: 5},
}

func fallback(kind Kind) interface{} {
	switch kind {
	case KindPlants:
		return wizard.Plants
	case KindPurposes:
		return fallbackPurposes
	case KindMethods:
		return fallbackMethods
	case KindLayouts:
		return fallbackLayouts
	case KindStyles:
		return fallbackStyles
	case KindQRPricing:
		return wizard.QRPricing
	}
	return nil
}
