package main

import (
	"errors"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenTransitTools/trainguide/app/train-guidance/guidance"
	"github.com/OpenTransitTools/trainguide/business/data/announcement"
	"github.com/OpenTransitTools/trainguide/business/data/topology"
	"github.com/OpenTransitTools/trainguide/foundation/database"
	"github.com/OpenTransitTools/trainguide/foundation/daytype"
	"github.com/OpenTransitTools/trainguide/foundation/httpclient"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var build = "develop"

type config struct {
	conf.Version
	Args conf.Args
	DB   struct {
		Driver     string `conf:"default:sqlite"`
		User       string `conf:"default:postgres"`
		Password   string `conf:"default:postgres,noprint"`
		Host       string `conf:"default:0.0.0.0"`
		Name       string `conf:"default:postgres"`
		DisableTLS bool   `conf:"default:true"`
		Path       string `conf:"default:guidance.db"`
		Record     bool   `conf:"default:false"`
	}
	NATS struct {
		URL                 string `conf:"default:nats://localhost:4222"`
		Enabled             bool   `conf:"default:false"`
		FixSubject          string `conf:"default:train-guidance-fixes"`
		AnnouncementSubject string `conf:"default:train-guidance-announcements"`
	}
	GTFS struct {
		VehiclePositionsURL string
		TripUpdatesURL      string
		VehicleID           string
		PollEveryMillis     int `conf:"default:1000"`
	}
	Guidance struct {
		TopologyFile        string
		TrainNumber         string
		Direction           string
		Type                string
		Destination         string
		Cars                int    `conf:"default:10"`
		SecondTrainNumber   string
		SecondType          string
		SecondDestination   string
		ChangeStation       string
		Location            string `conf:"default:Asia/Tokyo"`
		MaxFixAgeSeconds    int    `conf:"default:10"`
		MaxAccuracyMeters   int    `conf:"default:200"`
		LookupEverySeconds  int    `conf:"default:30"`
		LookupTimeoutMillis int    `conf:"default:3000"`
	}
	Web struct {
		Port int `conf:"default:8080"`
	}
}

func main() {
	log := logger.New(os.Stdout, "TRAIN_GUIDANCE : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var cfg config
	cfg.Version.SVN = build
	cfg.Version.Desc = "Announce station approaches for a train from its position fixes"
	const prefix = "GUIDANCE"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			printUsage(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Load topology and resolve the train

	topo, err := loadTopology(cfg.Guidance.TopologyFile)
	if err != nil {
		return err
	}
	location, err := time.LoadLocation(cfg.Guidance.Location)
	if err != nil {
		return fmt.Errorf("loading location %s: %w", cfg.Guidance.Location, err)
	}
	train, err := trainConfig(cfg, topo, location)
	if err != nil {
		return err
	}
	engineConf := guidance.Conf{
		MaxFixAge:   time.Duration(cfg.Guidance.MaxFixAgeSeconds) * time.Second,
		MaxAccuracy: float64(cfg.Guidance.MaxAccuracyMeters),
		Location:    location,
	}

	switch cfg.Args.Num(0) {
	case "replay":
		return replay(log, topo, train, engineConf, cfg.Args.Num(1))
	case "run", "":
		return runSession(log, cfg, topo, train, engineConf)
	}
	return fmt.Errorf("unknown command %q, expected run or replay", cfg.Args.Num(0))
}

func loadTopology(path string) (*topology.Topology, error) {
	if path == "" {
		topo, err := topology.Default()
		if err != nil {
			return nil, fmt.Errorf("loading embedded topology: %w", err)
		}
		return topo, nil
	}
	return topology.Load(path)
}

//trainConfig builds the resolved TrainConfig from configuration, with the day type of today in location
func trainConfig(cfg config, topo *topology.Topology, location *time.Location) (guidance.TrainConfig, error) {
	train := guidance.TrainConfig{
		Type:        cfg.Guidance.Type,
		Destination: cfg.Guidance.Destination,
		Cars:        cfg.Guidance.Cars,
		TrainNumber: cfg.Guidance.TrainNumber,
		DayType:     daytype.MakeCalendar(location).DayTypeAt(time.Now()),
	}
	if cfg.Guidance.Direction != "" {
		direction, err := topology.ParseDirection(cfg.Guidance.Direction)
		if err != nil {
			return train, err
		}
		train.Direction = direction
	}
	if cfg.Guidance.ChangeStation != "" {
		train.SecondLeg = &guidance.SecondLeg{
			Type:          cfg.Guidance.SecondType,
			Destination:   cfg.Guidance.SecondDestination,
			TrainNumber:   cfg.Guidance.SecondTrainNumber,
			ChangeStation: cfg.Guidance.ChangeStation,
		}
	}
	resolved, err := guidance.ResolveTrainConfig(topo, train)
	if err != nil {
		return resolved, fmt.Errorf("resolving train: %w", err)
	}
	return resolved, nil
}

func replay(log *logger.Logger,
	topo *topology.Topology,
	train guidance.TrainConfig,
	engineConf guidance.Conf,
	path string) error {
	if path == "" {
		return fmt.Errorf("replay requires a trace file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	fixes, err := guidance.ReadTrace(data)
	if err != nil {
		return err
	}
	log.Printf("main: replaying %d fixes from %s", len(fixes), path)
	status := guidance.RunReplay(log, topo, train, engineConf, fixes, guidance.MakePublisher(log, nil, nil, ""))
	log.Printf("main: replay finished, route lock %q, next stop %q", status.RouteLock, status.NextStop)
	return nil
}

func runSession(log *logger.Logger,
	cfg config,
	topo *topology.Topology,
	train guidance.TrainConfig,
	engineConf guidance.Conf) error {

	// =========================================================================
	// Start Database

	var db *sqlx.DB
	if cfg.DB.Record {
		log.Println("main: Initializing database support")
		var err error
		db, err = database.Open(database.Config{
			Driver:     cfg.DB.Driver,
			User:       cfg.DB.User,
			Password:   cfg.DB.Password,
			Host:       cfg.DB.Host,
			Name:       cfg.DB.Name,
			DisableTLS: cfg.DB.DisableTLS,
			Path:       cfg.DB.Path,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Driver)
			err = db.Close()
			if err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
		if err = announcement.EnsureSchema(db); err != nil {
			return err
		}
	}

	// =========================================================================
	// Start NATS

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		log.Printf("main: Connecting to nats at %s", cfg.NATS.URL)
		var err error
		natsConn, err = nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsConn.Close()
	}

	// =========================================================================
	// Position source, delay lookup and session

	client := httpclient.NewClient(log, 10*time.Second)
	var source guidance.FixSource
	switch {
	case natsConn != nil && cfg.NATS.FixSubject != "":
		natsSource, err := guidance.NewNatsFixSource(log, natsConn, cfg.NATS.FixSubject)
		if err != nil {
			return err
		}
		defer func() {
			if err := natsSource.Close(); err != nil {
				log.Printf("Error unsubscribing to nats:%s", err)
			}
		}()
		source = natsSource
	case cfg.GTFS.VehiclePositionsURL != "" && cfg.GTFS.VehicleID != "":
		source = guidance.NewVehiclePositionSource(log, client, cfg.GTFS.VehiclePositionsURL, cfg.GTFS.VehicleID,
			time.Duration(cfg.GTFS.PollEveryMillis)*time.Millisecond)
	default:
		return fmt.Errorf("no position source, enable nats or set a vehicle positions url and vehicle id")
	}

	lookupEvery := time.Duration(cfg.Guidance.LookupEverySeconds) * time.Second
	var lookup guidance.DelayLookup
	if cfg.GTFS.TripUpdatesURL != "" {
		lookup = guidance.NewTripUpdateLookup(log, client, cfg.GTFS.TripUpdatesURL, topo, lookupEvery)
	}

	var announcementSubject string
	if natsConn != nil {
		announcementSubject = cfg.NATS.AnnouncementSubject
	}
	engine := guidance.NewEngine(log, topo, train, engineConf)
	session := guidance.NewSession(log, engine, source,
		guidance.MakePublisher(log, db, natsConn, announcementSubject),
		lookup, lookupEvery, time.Duration(cfg.Guidance.LookupTimeoutMillis)*time.Millisecond)

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return guidance.StartServices(log, session, db, cfg.Web.Port, shutdown)
}

func printUsage(confUsage string) {
	fmt.Println(confUsage)
}
