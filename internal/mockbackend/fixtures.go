package mockbackend

import "github.com/MarkoPoloResearchLab/srquick/pkg/srquick"

// Players every mock instance knows about. Any other well-formed UID is
// reported as nonexistent.
const (
	FixtureUID      = "100000001"
	FixtureAltUID   = "123456789"
	FixtureThirdUID = "987654321"
)

type playerFixture struct {
	player     srquick.PlayerInfo
	characters []srquick.CharacterInfo
}

func intPointer(value int) *int {
	return &value
}

func fixturePlayer(uid string, nickname string, level int) srquick.PlayerInfo {
	return srquick.PlayerInfo{
		UID:         uid,
		Nickname:    nickname,
		Level:       level,
		WorldLevel:  level / 8,
		FriendCount: 45,
		Avatar:      srquick.NamedIcon{ID: "8001", Name: "星", Icon: "icon/avatar/8001.png"},
		Signature:   "愿此行，终抵群星。",
		IsDisplay:   true,
		SpaceInfo: srquick.SpaceInfo{
			MemoryData:       srquick.MemoryData{Level: 12, ChaosID: intPointer(2), ChaosLevel: 10, ChaosStarCount: 36},
			UniverseLevel:    8,
			AvatarCount:      28,
			LightConeCount:   15,
			RelicCount:       180,
			AchievementCount: 520,
			BookCount:        85,
			MusicCount:       42,
		},
	}
}

func attribute(field string, name string, value float64, display string, percent bool) srquick.CharacterAttribute {
	return srquick.CharacterAttribute{
		Field:   field,
		Name:    name,
		Icon:    "icon/property/" + field + ".png",
		Value:   value,
		Display: display,
		Percent: percent,
	}
}

func fixtureCharacter(id string, name string, rarity int, level int, rank int, path srquick.NamedIcon, element srquick.NamedIcon) srquick.CharacterInfo {
	return srquick.CharacterInfo{
		ID:        id,
		Name:      name,
		Rarity:    rarity,
		Rank:      rank,
		Level:     level,
		Promotion: level / 10,
		Icon:      "icon/character/" + id + ".png",
		Preview:   "image/character_preview/" + id + ".png",
		Portrait:  "image/character_portrait/" + id + ".png",
		Path:      path,
		Element:   element,
		LightCone: &srquick.LightCone{
			ID:        "23001",
			Name:      "于夜色中",
			Rarity:    5,
			Rank:      1,
			Level:     80,
			Promotion: 6,
			Icon:      "icon/light_cone/23001.png",
			Preview:   "image/light_cone_preview/23001.png",
			Portrait:  "image/light_cone_portrait/23001.png",
		},
		Relics: []srquick.Relic{
			{
				ID:        "61011",
				Name:      "密林卧雪的猎人之头",
				SetID:     "101",
				SetName:   "密林卧雪的猎人",
				Rarity:    5,
				Level:     15,
				Icon:      "icon/relic/101_0.png",
				MainAffix: attribute("hp", "生命值", 705, "705", false),
				SubAffix: []srquick.CharacterAttribute{
					attribute("crit_rate", "暴击率", 0.097, "9.7%", true),
					attribute("crit_dmg", "暴击伤害", 0.194, "19.4%", true),
				},
			},
		},
		Attributes: []srquick.CharacterAttribute{
			attribute("hp", "生命值", 931, "931", false),
			attribute("atk", "攻击力", 601, "601", false),
			attribute("def", "防御力", 363, "363", false),
			attribute("spd", "速度", 115, "115", false),
		},
		Additions: []srquick.CharacterAttribute{
			attribute("crit_rate", "暴击率", 0.25, "25.0%", true),
			attribute("crit_dmg", "暴击伤害", 0.5, "50.0%", true),
		},
		Properties: []srquick.CharacterAttribute{
			attribute("spd", "速度", 4, "4", false),
		},
	}
}

func defaultCatalog() map[string]playerFixture {
	hunt := srquick.NamedIcon{ID: "Rogue", Name: "巡猎", Icon: "icon/path/Hunt.png"}
	destruction := srquick.NamedIcon{ID: "Warrior", Name: "毁灭", Icon: "icon/path/Destruction.png"}
	nihility := srquick.NamedIcon{ID: "Warlock", Name: "虚无", Icon: "icon/path/Nihility.png"}
	quantum := srquick.NamedIcon{ID: "Quantum", Name: "量子", Icon: "icon/element/Quantum.png"}
	wind := srquick.NamedIcon{ID: "Wind", Name: "风", Icon: "icon/element/Wind.png"}
	lightning := srquick.NamedIcon{ID: "Thunder", Name: "雷", Icon: "icon/element/Lightning.png"}

	seele := fixtureCharacter("1102", "希儿", 5, 80, 0, hunt, quantum)
	blade := fixtureCharacter("1205", "刃", 5, 80, 1, destruction, wind)
	kafka := fixtureCharacter("1005", "卡芙卡", 5, 70, 0, nihility, lightning)

	return map[string]playerFixture{
		FixtureUID: {
			player:     fixturePlayer(FixtureUID, "开拓者", 60),
			characters: []srquick.CharacterInfo{seele, blade, kafka},
		},
		FixtureAltUID: {
			player:     fixturePlayer(FixtureAltUID, "三月七", 48),
			characters: []srquick.CharacterInfo{seele, kafka},
		},
		FixtureThirdUID: {
			player:     fixturePlayer(FixtureThirdUID, "丹恒", 32),
			characters: []srquick.CharacterInfo{blade},
		},
	}
}

func summaryOf(character srquick.CharacterInfo) srquick.CharacterSummary {
	return srquick.CharacterSummary{
		ID:        character.ID,
		Icon:      character.Icon,
		Name:      character.Name,
		Rank:      character.Rank,
		Level:     character.Level,
		Rarity:    character.Rarity,
		Preview:   character.Preview,
		Portrait:  character.Portrait,
		Promotion: character.Promotion,
	}
}
