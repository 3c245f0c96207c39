package summary

/********** field tables (single source of truth) **********/

type formatter int

const (
	plain formatter = iota
	price
	area
	height
)

// Field is one summary bullet: a label, the source keys it may come from
// (most preferred first) and how to format the resolved value.
type Field struct {
	Label   string
	Aliases []string
	Format  formatter
}

type section struct {
	title  string
	fields []Field
}

var titleAliases = []string{"title", "name", "headline", "project_name"}

var identityFields = []Field{
	{"ID", []string{"external_id", "id"}, plain},
	{"Тип", []string{"object_type", "category"}, plain},
	{"Статус", []string{"status", "state"}, plain},
}

var apartmentFields = []Field{
	{"Комнаты", []string{"rooms", "room_count", "rooms_count"}, plain},
	{"Общая площадь", []string{"area", "square", "square_total"}, area},
	{"Жилая площадь", []string{"living_area", "square_living"}, area},
	{"Кухня", []string{"kitchen_area", "square_kitchen"}, area},
	{"Высота потолка", []string{"ceiling_height"}, height},
	{"Этаж", []string{"floor", "floor_number"}, plain},
	{"Планировка", []string{"layout", "plan"}, plain},
	{"Состояние", []string{"condition", "repair"}, plain},
	{"Мебель", []string{"furniture"}, plain},
	{"Техника", []string{"appliances", "equipment"}, plain},
}

var buildingFields = []Field{
	{"ЖК", []string{"complex", "residential_complex", "project_name"}, plain},
	{"Корпус/Секция", []string{"corpus", "section", "building_section"}, plain},
	{"Тип дома", []string{"building_type", "house_type"}, plain},
	{"Год постройки", []string{"year_built", "built_year"}, plain},
	{"Срок сдачи", []string{"deadline", "handover_date", "ready_quarter"}, plain},
	{"Этажность", []string{"floors", "floors_total", "max_floor"}, plain},
	{"Лифты", []string{"lifts", "elevators", "elevator"}, plain},
	{"Паркинг", []string{"parking", "parking_type", "parking_info"}, plain},
	{"Отделка", []string{"finishing", "finish"}, plain},
	{"Территория", []string{"territory", "security"}, plain},
}

// "area" is listed for district too; apartments claim it first.
var locationFields = []Field{
	{"Адрес", []string{"address", "location", "full_address"}, plain},
	{"Город", []string{"city", "town", "locality"}, plain},
	{"Район", []string{"district", "area", "okrug"}, plain},
	{"Метро", []string{"metro", "subway", "metro_station"}, plain},
	{"До метро", []string{"distance_to_metro", "metro_time"}, plain},
	{"Координаты", []string{"coords", "coordinates"}, plain},
}

var conditionFields = []Field{
	{"Цена", []string{"price", "price_total", "price_rub"}, price},
	{"Цена за м²", []string{"price_per_m2", "price_m2"}, price},
	{"Залог", []string{"deposit", "pledge"}, price},
	{"Комиссия", []string{"commission", "fee"}, price},
	{"Ипотека", []string{"mortgage", "installment"}, plain},
	{"Условия", []string{"conditions", "terms"}, plain},
	{"Доступно с", []string{"available_from", "available_date"}, plain},
	{"Минимальный срок", []string{"min_term", "min_rent_term"}, plain},
}

var sections = []section{
	{"🏠 Квартира", apartmentFields},
	{"🏢 Дом / ЖК", buildingFields},
	{"📍 Локация", locationFields},
	{"💰 Условия", conditionFields},
}

var (
	contactNameAliases  = []string{"contact_name", "agent_name", "manager_name"}
	contactPhoneAliases = []string{"contact_phone", "phone", "agent_phone", "manager_phone"}
	linkAliases         = []string{"url", "link", "listing_url"}
)

// Long free text and image references never go into the extras block.
var (
	excludedExtraKeys = map[string]struct{}{
		"description":       {},
		"short_description": {},
		"comment":           {},
		"notes":             {},
		"images":            {},
		"photos":            {},
		"gallery":           {},
		"image_urls":        {},
		"photo_urls":        {},
		"img_urls":          {},
	}
	excludedKeyParts = []string{"description", "photo", "image", "img"}
)
