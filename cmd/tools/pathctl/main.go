package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/annel0/voxelnav/internal/config"
	"github.com/annel0/voxelnav/internal/ingest"
	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/pathfinding"
	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
	"github.com/annel0/voxelnav/internal/worldgen"
)

// pathctl - офлайн-запрос маршрута по файлу блоков или сгенерированному рельефу.
//
//	pathctl -blocks blocks.json -from 0.5,65,0.5 -to 12.5,65,3.5
//	pathctl -generate 64 -seed 7 -from 2,0,2 -to 60,0,60 -stand
//	pathctl -generate 32 -export demo.json
func main() {
	var (
		configPath = flag.String("config", "", "YAML конфигурация (правила движения)")
		blocksFile = flag.String("blocks", "", "файл блоков [{x,y,z,name}]")
		generate   = flag.Int("generate", 0, "сгенерировать рельеф N x N вместо файла")
		seed       = flag.Int64("seed", 1, "сид генератора")
		from       = flag.String("from", "", "старт x,y,z")
		to         = flag.String("to", "", "цель x,y,z")
		stand      = flag.Bool("stand", false, "с -generate: y из from/to игнорируется, берётся точка над рельефом")
		dense      = flag.Bool("dense", false, "печатать плотный путь вместо упрощённого")
		asJSON     = flag.Bool("json", false, "вывод в JSON")
		export     = flag.String("export", "", "сохранить мир в файл блоков и выйти")
		verbose    = flag.Bool("v", false, "подробный лог")
	)
	flag.Parse()

	if *verbose {
		logging.SetConsoleLevel(logging.DEBUG)
	} else {
		logging.SetConsoleLevel(logging.WARN)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Конфигурация: %v", err)
	}

	var gen *worldgen.Generator
	var cells []world.Cell
	switch {
	case *generate > 0:
		gen = worldgen.NewGenerator(*seed)
		cells = gen.Generate(*generate)
	case *blocksFile != "":
		records, err := ingest.LoadFile(*blocksFile)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		cells = ingest.ToCells(records)
	default:
		log.Fatal("❌ Нужен -blocks или -generate")
	}

	if *export != "" {
		if err := ingest.SaveFile(*export, ingest.RecordsFromCells(cells)); err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Printf("💾 %d блоков сохранено в %s\n", len(cells), *export)
		return
	}

	start, err := vec.ParseVec3Float(*from)
	if err != nil {
		log.Fatalf("❌ -from: %v", err)
	}
	goal, err := vec.ParseVec3Float(*to)
	if err != nil {
		log.Fatalf("❌ -to: %v", err)
	}
	if *stand && gen != nil {
		start = gen.StandPoint(int(start.X), int(start.Z))
		goal = gen.StandPoint(int(goal.X), int(goal.Z))
	}

	policy, err := world.ParseSurfacePolicy(cfg.Pathfinding.SurfacePolicy)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	store := world.NewStore(policy)
	snap := store.SetOccupancy(cells)

	finder := pathfinding.NewPathfinder(pathfinding.FromConfig(cfg.Pathfinding), nil)
	res := finder.Search(snap, start, goal)

	points := pathfinding.Simplify(res.Path)
	if *dense {
		points = res.Path
	}

	if *asJSON {
		out := map[string]interface{}{
			"outcome":    res.Outcome.String(),
			"expansions": res.Expansions,
			"points":     points,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatalf("❌ %v", err)
		}
	} else {
		rules := finder.Config()
		fmt.Printf("📐 %s, прыжок %d, падение %d, дрейф %d, бюджет %d\n",
			store.Policy(), rules.MaxJumpHeight, rules.MaxFallDistance, rules.MaxAirDrift, rules.MaxIterations)
		fmt.Printf("🧭 %s → %s: %s, раскрыто %d узлов\n", start, goal, res.Outcome, res.Expansions)
		for i, p := range points {
			fmt.Printf("%4d  %s\n", i, p)
		}
	}

	if err := res.Err(); err != nil {
		os.Exit(1)
	}
}
